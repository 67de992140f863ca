package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/n0rdy/approvals/queue"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	maxResponseBytes = 1 << 20 // 1 MB
)

type Verdict string

const (
	Approve Verdict = "APPROVE"
	Reject  Verdict = "REJECT"
)

var (
	ErrClassification        = errors.New("classification failed")
	ErrClassificationTimeout = errors.New("classification timed out")
)

type Decision struct {
	Verdict Verdict
	Reason  string
}

type Config struct {
	Url                string
	ApiKey             string
	Model              string
	Timeout            time.Duration
	BreakerMaxFailures uint32        // Consecutive failures after which the breaker opens
	BreakerOpenTimeout time.Duration // How long the breaker stays open before letting a probe through
}

// Client calls the external moderation service. Every call is bounded by the configured timeout,
// and a circuit breaker fails calls fast while the service keeps failing.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type classifyRequest struct {
	ListingId string         `json:"listingId"`
	Model     string         `json:"model,omitempty"`
	Listing   listingPayload `json:"listing"`
}

type listingPayload struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Price            float64  `json:"price"`
	Deposit          float64  `json:"deposit"`
	Area             float64  `json:"area"`
	Length           float64  `json:"length"`
	Width            float64  `json:"width"`
	MaxPeople        int      `json:"maxPeople"`
	ElectricityPrice float64  `json:"electricityPrice"`
	WaterPrice       float64  `json:"waterPrice"`
	InternetPrice    float64  `json:"internetPrice"`
	FullAddress      string   `json:"fullAddress"`
	Amenities        []string `json:"amenities"`
	ImageUrls        []string `json:"imageUrls"`
}

type classifyResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func NewClient(cfg Config) *Client {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("classifier circuit breaker state changed")
		},
	})

	return &Client{
		cfg: cfg,
		// the deadline comes from the per-call context, the client itself has no timeout
		httpClient: &http.Client{},
		breaker:    breaker,
	}
}

func (c *Client) Classify(ctx context.Context, msg *queue.Message) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doClassify(ctx, msg)
	})
	if err != nil {
		return Decision{}, translateError(ctx, err)
	}
	return result.(Decision), nil
}

func (c *Client) doClassify(ctx context.Context, msg *queue.Message) (Decision, error) {
	body, err := json.Marshal(toRequest(msg, c.cfg.Model))
	if err != nil {
		return Decision{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Decision{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Decision{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Decision{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Decision{}, fmt.Errorf("decode response: %w", err)
	}

	verdict := Verdict(strings.ToUpper(strings.TrimSpace(parsed.Decision)))
	switch verdict {
	case Approve, Reject:
		return Decision{Verdict: verdict, Reason: strings.TrimSpace(parsed.Reason)}, nil
	default:
		return Decision{}, fmt.Errorf("unknown decision %q", parsed.Decision)
	}
}

func toRequest(msg *queue.Message, model string) classifyRequest {
	s := msg.Snapshot
	return classifyRequest{
		ListingId: msg.ListingId,
		Model:     model,
		Listing: listingPayload{
			Title:            s.Title,
			Description:      s.Description,
			Price:            s.Price,
			Deposit:          s.Deposit,
			Area:             s.Area,
			Length:           s.Length,
			Width:            s.Width,
			MaxPeople:        s.MaxPeople,
			ElectricityPrice: s.ElectricityPrice,
			WaterPrice:       s.WaterPrice,
			InternetPrice:    s.InternetPrice,
			FullAddress:      s.FullAddress,
			Amenities:        s.Amenities,
			ImageUrls:        s.ImageUrls,
		},
	}
}

func translateError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrClassificationTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrClassificationTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrClassification, err)
}
