package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/n0rdy/approvals/common"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

type ListingsRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dbPath string) (*ListingsRepo, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &ListingsRepo{
		db: db,
	}, nil
}

func (lr *ListingsRepo) InsertRoom(ctx context.Context, room *Room) error {
	amenities, err := json.Marshal(nonNil(room.Amenities))
	if err != nil {
		return common.ErrInternal
	}
	imageUrls, err := json.Marshal(nonNil(room.ImageUrls))
	if err != nil {
		return common.ErrInternal
	}

	query := `
		INSERT INTO rooms (id, title, description, price, deposit, area, length, width, max_people,
		                   electricity_price, water_price, internet_price, full_address, amenities, image_urls,
		                   approval, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err = lr.db.ExecContext(ctx, query,
		room.Id,               // id
		room.Title,            // title
		room.Description,      // description
		room.Price,            // price
		room.Deposit,          // deposit
		room.Area,             // area
		room.Length,           // length
		room.Width,            // width
		room.MaxPeople,        // max_people
		room.ElectricityPrice, // electricity_price
		room.WaterPrice,       // water_price
		room.InternetPrice,    // internet_price
		room.FullAddress,      // full_address
		string(amenities),     // amenities
		string(imageUrls),     // image_urls
		room.Approval,         // approval
		room.CreatedAt,        // created_at
		room.UpdatedAt,        // updated_at
	)
	if err != nil {
		log.Error().Err(err).Str("room_id", room.Id).Msg("failed to insert room")
		return common.ErrInternal
	}
	return nil
}

// SelectRoom returns nil if there is no room with such id.
func (lr *ListingsRepo) SelectRoom(ctx context.Context, roomId string) (*Room, error) {
	query := `
		SELECT id, title, description, price, deposit, area, length, width, max_people,
		       electricity_price, water_price, internet_price, full_address, amenities, image_urls,
		       approval, post_start_date, post_end_date, created_at, updated_at
		FROM rooms
		WHERE id = ?;`

	var room Room
	var amenities, imageUrls string
	var postStart, postEnd sql.NullInt64
	err := lr.db.QueryRowContext(ctx, query, roomId).Scan(
		&room.Id, &room.Title, &room.Description, &room.Price, &room.Deposit, &room.Area, &room.Length, &room.Width,
		&room.MaxPeople, &room.ElectricityPrice, &room.WaterPrice, &room.InternetPrice, &room.FullAddress,
		&amenities, &imageUrls, &room.Approval, &postStart, &postEnd, &room.CreatedAt, &room.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomId).Msg("failed to select room")
		return nil, common.ErrInternal
	}

	if err := json.Unmarshal([]byte(amenities), &room.Amenities); err != nil {
		log.Warn().Err(err).Str("room_id", roomId).Msg("malformed amenities, ignoring them")
	}
	if err := json.Unmarshal([]byte(imageUrls), &room.ImageUrls); err != nil {
		log.Warn().Err(err).Str("room_id", roomId).Msg("malformed image urls, ignoring them")
	}
	if postStart.Valid {
		room.PostStartDate = &postStart.Int64
	}
	if postEnd.Valid {
		room.PostEndDate = &postEnd.Int64
	}
	return &room, nil
}

// SelectPendingRoomIds returns the ids of all pending rooms, oldest first.
func (lr *ListingsRepo) SelectPendingRoomIds(ctx context.Context) ([]string, error) {
	query := `
		SELECT id
		FROM rooms
		WHERE approval = ?
		ORDER BY created_at ASC;`

	rows, err := lr.db.QueryContext(ctx, query, common.PendingApproval)
	if err != nil {
		log.Error().Err(err).Msg("failed to select pending rooms")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Error().Err(err).Msg("failed to scan pending room id")
			return nil, common.ErrInternal
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate pending rooms")
		return nil, common.ErrInternal
	}
	return ids, nil
}

// UpdateApprovalIfPending writes the approval decision only if the room is still pending,
// so a manual decision made in the meantime is never overwritten.
// Returns false if nothing was updated.
func (lr *ListingsRepo) UpdateApprovalIfPending(ctx context.Context, update *ApprovalUpdate) (bool, error) {
	nowMs := time.Now().UnixMilli()

	query := `
		UPDATE rooms
		SET
			approval = ?,
			post_start_date = COALESCE(?, post_start_date),
			post_end_date = COALESCE(?, post_end_date),
			updated_at = ?
		WHERE id = ? AND approval = ?;`

	result, err := lr.db.ExecContext(ctx, query,
		update.Approval,        // approval = ?
		update.PostStartDate,   // post_start_date = COALESCE(?, ...)
		update.PostEndDate,     // post_end_date = COALESCE(?, ...)
		nowMs,                  // updated_at = ?
		update.RoomId,          // WHERE id = ?
		common.PendingApproval, // AND approval = ?
	)
	if err != nil {
		log.Error().Err(err).Str("room_id", update.RoomId).Msg("failed to update room approval")
		return false, common.ErrInternal
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error().Err(err).Str("room_id", update.RoomId).Msg("failed to get rows affected after approval update")
		return false, common.ErrInternal
	}
	return rowsAffected > 0, nil
}

func (lr *ListingsRepo) Ping(ctx context.Context) error {
	return lr.db.PingContext(ctx)
}

func (lr *ListingsRepo) Close() error {
	return lr.db.Close()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
