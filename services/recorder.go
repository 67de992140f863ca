package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/n0rdy/approvals/audit"
	"github.com/n0rdy/approvals/billing"
	"github.com/n0rdy/approvals/classifier"
	"github.com/n0rdy/approvals/common"
	"github.com/n0rdy/approvals/db"
	"github.com/n0rdy/approvals/metrics"
	"github.com/n0rdy/approvals/queue"

	"github.com/rs/zerolog/log"
)

type Outcome int

const (
	OutcomeApproved Outcome = iota
	OutcomeRejected
	// the listing was no longer pending when the decision was applied
	OutcomeSuperseded
	OutcomeRequeued
	OutcomeRetryDropped
	OutcomeManualReview
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return common.ApprovedOutcome
	case OutcomeRejected:
		return common.RejectedOutcome
	case OutcomeSuperseded:
		return common.SupersededOutcome
	case OutcomeRequeued:
		return common.ClassificationFailedOutcome
	case OutcomeRetryDropped:
		return common.RetryDroppedOutcome
	case OutcomeManualReview:
		return common.ManualReviewOutcome
	default:
		return "unknown"
	}
}

// Resubmitted reports whether the queue has already released the listing as part of a resubmission.
func (o Outcome) Resubmitted() bool {
	return o == OutcomeRequeued || o == OutcomeRetryDropped
}

type RecorderConfig struct {
	MaxRetries   int
	PostDuration time.Duration
}

// OutcomeRecorder applies decisions to storage, writes exactly one audit record per processing attempt
// and resubmits failed attempts while the retry budget lasts.
type OutcomeRecorder struct {
	store          ListingStore
	sink           audit.Sink
	publisher      billing.Publisher
	resubmitter    Resubmitter
	metricsService metrics.Service
	cfg            RecorderConfig
	now            func() time.Time
}

func NewOutcomeRecorder(
	store ListingStore,
	sink audit.Sink,
	publisher billing.Publisher,
	resubmitter Resubmitter,
	metricsService metrics.Service,
	cfg RecorderConfig,
) *OutcomeRecorder {
	return &OutcomeRecorder{
		store:          store,
		sink:           sink,
		publisher:      publisher,
		resubmitter:    resubmitter,
		metricsService: metricsService,
		cfg:            cfg,
		now:            time.Now,
	}
}

func (rec *OutcomeRecorder) RecordDecision(ctx context.Context, msg *queue.Message, decision classifier.Decision) Outcome {
	update := &db.ApprovalUpdate{RoomId: msg.ListingId}
	outcome := OutcomeRejected
	if decision.Verdict == classifier.Approve {
		start := rec.now().UnixMilli()
		end := start + rec.cfg.PostDuration.Milliseconds()
		update.Approval = common.ApprovedApproval
		update.PostStartDate = &start
		update.PostEndDate = &end
		outcome = OutcomeApproved
	} else {
		update.Approval = common.RejectedApproval
	}

	updated, err := rec.store.UpdateApprovalIfPending(ctx, update)
	if err != nil {
		return rec.RecordFailure(ctx, msg, err)
	}
	if !updated {
		log.Info().Str("listing_id", msg.ListingId).Str("verdict", string(decision.Verdict)).Msg("listing is no longer pending, decision discarded")
		rec.metricsService.IncFailuresTotal(metrics.SupersededReason)
		rec.audit(ctx, msg, OutcomeSuperseded, decision.Reason)
		return OutcomeSuperseded
	}

	rec.metricsService.IncDecisionsTotal(strings.ToLower(string(decision.Verdict)))
	rec.audit(ctx, msg, outcome, decision.Reason)
	log.Info().Str("listing_id", msg.ListingId).Str("outcome", outcome.String()).Int("retry_count", msg.RetryCount).Msg("listing decision applied")

	if outcome == OutcomeRejected {
		rec.publishRejection(ctx, msg, decision.Reason)
	}
	return outcome
}

// RecordFailure resubmits the message for another attempt, or hands the listing over to manual review
// once the retry budget is spent.
func (rec *OutcomeRecorder) RecordFailure(ctx context.Context, msg *queue.Message, cause error) Outcome {
	reason := failureReason(cause)
	log.Warn().Err(cause).Str("listing_id", msg.ListingId).Int("retry_count", msg.RetryCount).Msg("listing processing failed")

	if msg.RetryCount >= rec.cfg.MaxRetries {
		rec.metricsService.IncFailuresTotal(metrics.RetriesExhaustedReason)
		rec.audit(ctx, msg, OutcomeManualReview, reason)
		log.Error().Str("listing_id", msg.ListingId).Int("retry_count", msg.RetryCount).Msg("retries exhausted, listing requires manual review")
		return OutcomeManualReview
	}

	rec.metricsService.IncFailuresTotal(metrics.ClassificationFailedReason)
	err := rec.resubmitter.Requeue(msg.NextAttempt())
	if err != nil {
		rec.metricsService.IncFailuresTotal(metrics.RetryDroppedReason)
		rec.audit(ctx, msg, OutcomeRetryDropped, reason+"; retry dropped: "+err.Error())
		log.Error().Err(err).Str("listing_id", msg.ListingId).Msg("failed to resubmit listing, retry dropped")
		return OutcomeRetryDropped
	}

	rec.metricsService.IncRetriesTotal()
	rec.audit(ctx, msg, OutcomeRequeued, reason)
	return OutcomeRequeued
}

func (rec *OutcomeRecorder) audit(ctx context.Context, msg *queue.Message, outcome Outcome, reason string) {
	record := audit.NewRecord(msg.ListingId, msg.Snapshot.Title, outcome.String(), reason, msg.RetryCount)
	if err := rec.sink.Append(ctx, record); err != nil {
		log.Error().Err(err).Str("listing_id", msg.ListingId).Str("outcome", outcome.String()).Msg("failed to append audit record")
	}
}

func (rec *OutcomeRecorder) publishRejection(ctx context.Context, msg *queue.Message, reason string) {
	event := billing.ListingRejectedEvent{
		ListingId:  msg.ListingId,
		Title:      msg.Snapshot.Title,
		Reason:     reason,
		RejectedAt: rec.now().UTC().Format(time.RFC3339),
	}
	if err := rec.publisher.PublishListingRejected(ctx, event); err != nil {
		log.Error().Err(err).Str("listing_id", msg.ListingId).Msg("failed to publish listing rejected event")
	}
}

func failureReason(cause error) string {
	switch {
	case errors.Is(cause, classifier.ErrClassificationTimeout):
		return "classification timed out"
	case errors.Is(cause, classifier.ErrClassification):
		return cause.Error()
	case errors.Is(cause, common.ErrInternal):
		return "failed to store decision"
	default:
		return cause.Error()
	}
}
