package common

const (
	ErrCodeConflictAlreadyQueued       = "conflict.listing.already_queued"
	ErrCodeUnavailableQueueFull        = "unavailable.queue.full"
	ErrCodeUnavailableQueueClosed      = "unavailable.queue.closed"
	ErrCodeNotFoundListing             = "not_found.listing"
	ErrCodeBadRequestListingNotPending = "bad_request.listing.not_pending"
	ErrCodeBadRequestListingId         = "bad_request.path.listingId.invalid"
	ErrCodeUnavailableWorkersStopped   = "unavailable.workers.stopped"
	ErrCodeTooManyRequests             = "too_many_requests"
	ErrCodeUnauthorized                = "unauthorized"
	ErrCodeInternal                    = "internal"
)

var (
	ErrConflictAlreadyQueued       = ApprovalError{Code: ErrCodeConflictAlreadyQueued}
	ErrUnavailableQueueFull        = ApprovalError{Code: ErrCodeUnavailableQueueFull}
	ErrUnavailableQueueClosed      = ApprovalError{Code: ErrCodeUnavailableQueueClosed}
	ErrNotFoundListing             = ApprovalError{Code: ErrCodeNotFoundListing}
	ErrBadRequestListingNotPending = ApprovalError{Code: ErrCodeBadRequestListingNotPending}
	ErrBadRequestListingId         = ApprovalError{Code: ErrCodeBadRequestListingId}
	ErrInternal                    = ApprovalError{Code: ErrCodeInternal}
)

type ApprovalError struct {
	Code string
}

func (ae ApprovalError) Error() string {
	return ae.Code
}
