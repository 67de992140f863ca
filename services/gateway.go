package services

import (
	"context"
	"errors"

	"github.com/n0rdy/approvals/common"
	"github.com/n0rdy/approvals/db"
	"github.com/n0rdy/approvals/metrics"
	"github.com/n0rdy/approvals/queue"

	"github.com/rs/zerolog/log"
)

type EnqueueGateway struct {
	store          ListingStore
	queue          *queue.ApprovalQueue
	metricsService metrics.Service
}

func NewEnqueueGateway(store ListingStore, approvalQueue *queue.ApprovalQueue, metricsService metrics.Service) *EnqueueGateway {
	return &EnqueueGateway{
		store:          store,
		queue:          approvalQueue,
		metricsService: metricsService,
	}
}

// EnqueueOne snapshots the listing and submits it for approval.
func (eg *EnqueueGateway) EnqueueOne(ctx context.Context, listingId string) error {
	if listingId == "" {
		return common.ErrBadRequestListingId
	}
	if eg.queue.Contains(listingId) {
		eg.rejected(listingId, common.ErrConflictAlreadyQueued)
		return common.ErrConflictAlreadyQueued
	}

	room, err := eg.store.SelectRoom(ctx, listingId)
	if err != nil {
		return err
	}
	if room == nil {
		log.Error().Str("listing_id", listingId).Msg("listing not found")
		return common.ErrNotFoundListing
	}
	if room.Approval != common.PendingApproval {
		log.Error().Str("listing_id", listingId).Int("approval", room.Approval).Msg("listing is not pending approval")
		return common.ErrBadRequestListingNotPending
	}

	err = eg.queue.TryEnqueue(queue.NewMessage(room.Id, toSnapshot(room), common.ManualSource))
	if err != nil {
		eg.rejected(listingId, err)
		return err
	}
	eg.metricsService.IncMessagesEnqueuedTotalBy(1, common.ManualSource)
	log.Info().Str("listing_id", listingId).Int("queue_size", eg.queue.Size()).Msg("listing enqueued for approval")
	return nil
}

// EnqueueAllPending submits every pending listing that is not queued yet, stopping as soon as the queue is full.
// Returns the number of listings enqueued.
func (eg *EnqueueGateway) EnqueueAllPending(ctx context.Context, source string) (int, error) {
	ids, err := eg.store.SelectPendingRoomIds(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		if eg.queue.Contains(id) {
			continue
		}

		room, err := eg.store.SelectRoom(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("listing_id", id).Msg("failed to load pending listing, skipping it")
			continue
		}
		// approved, rejected or deleted since the scan
		if room == nil || room.Approval != common.PendingApproval {
			continue
		}

		err = eg.queue.TryEnqueue(queue.NewMessage(room.Id, toSnapshot(room), source))
		if errors.Is(err, common.ErrConflictAlreadyQueued) {
			continue
		}
		if errors.Is(err, common.ErrUnavailableQueueFull) {
			eg.rejected(id, err)
			log.Warn().Int("enqueued", enqueued).Int("pending", len(ids)).Msg("approval queue is full, stopping bulk enqueue")
			break
		}
		if err != nil {
			eg.rejected(id, err)
			eg.metricsService.IncMessagesEnqueuedTotalBy(int64(enqueued), source)
			return enqueued, err
		}
		enqueued++
	}

	eg.metricsService.IncMessagesEnqueuedTotalBy(int64(enqueued), source)
	log.Info().Int("enqueued", enqueued).Int("pending", len(ids)).Str("source", source).Msg("pending listings enqueued")
	return enqueued, nil
}

// Clear discards all queued messages without processing them. Returns the number discarded.
func (eg *EnqueueGateway) Clear() int {
	cleared := len(eg.queue.DrainAll())
	eg.metricsService.IncMessagesClearedTotalBy(int64(cleared))
	log.Info().Int("cleared", cleared).Msg("approval queue cleared")
	return cleared
}

func (eg *EnqueueGateway) rejected(listingId string, err error) {
	var ae common.ApprovalError
	reason := common.ErrCodeInternal
	if errors.As(err, &ae) {
		reason = ae.Code
	}
	eg.metricsService.IncEnqueueRejectedTotal(reason)
	log.Warn().Str("listing_id", listingId).Str("reason", reason).Msg("listing was not enqueued")
}

func toSnapshot(room *db.Room) queue.ListingSnapshot {
	return queue.ListingSnapshot{
		Title:            room.Title,
		Description:      room.Description,
		Price:            room.Price,
		Deposit:          room.Deposit,
		Area:             room.Area,
		Length:           room.Length,
		Width:            room.Width,
		MaxPeople:        room.MaxPeople,
		ElectricityPrice: room.ElectricityPrice,
		WaterPrice:       room.WaterPrice,
		InternetPrice:    room.InternetPrice,
		FullAddress:      room.FullAddress,
		Amenities:        append([]string(nil), room.Amenities...),
		ImageUrls:        append([]string(nil), room.ImageUrls...),
	}
}
