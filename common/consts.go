package common

const (
	// envs:
	LocalEnv = "local"
	ProEnv   = "pro"

	// listing approval states, as persisted in the rooms table:
	PendingApproval  = 0
	ApprovedApproval = 1
	RejectedApproval = 2

	// OS:
	WindowsOS = "windows"
	LinuxOS   = "linux"
	MacOS     = "darwin"

	// message sources:
	ManualSource = "manual"
	BulkSource   = "bulk"
	SweepSource  = "sweep"
	RetrySource  = "retry"

	// audit outcomes:
	ApprovedOutcome             = "approved"
	RejectedOutcome             = "rejected"
	ClassificationFailedOutcome = "classification_failed"
	RetryDroppedOutcome         = "retry_dropped"
	ManualReviewOutcome         = "manual_review_required"
	SupersededOutcome           = "superseded"

	// queue status labels:
	EmptyQueueStatus  = "EMPTY"
	NormalQueueStatus = "NORMAL"
	HighQueueStatus   = "HIGH"
	FullQueueStatus   = "FULL"

	HighUsagePercentage = 80.0
)

var (
	SupportedEnvs = map[string]bool{
		LocalEnv: true,
		ProEnv:   true,
	}
)
