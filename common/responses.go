package common

type EnqueueResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ListingId string `json:"listingId"`
}

type EnqueueAllResponse struct {
	Success       bool `json:"success"`
	EnqueuedCount int  `json:"enqueuedCount"`
}

type ClearResponse struct {
	Success      bool `json:"success"`
	ClearedCount int  `json:"clearedCount"`
}

type ProcessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type QueueStatusResponse struct {
	CurrentSize       int     `json:"currentSize"`
	TotalCapacity     int     `json:"totalCapacity"`
	RemainingCapacity int     `json:"remainingCapacity"`
	UsagePercentage   float64 `json:"usagePercentage"`
	InFlight          int     `json:"inFlight"`
	Status            string  `json:"status"`
}

type QueuedIdsResponse struct {
	ListingIds []string `json:"listingIds"`
	Count      int      `json:"count"`
}

type InstanceCountResponse struct {
	ListingId string `json:"listingId"`
	Count     int    `json:"count"`
}

type WorkersStatusResponse struct {
	IsRunning     bool  `json:"isRunning"`
	StartedAt     int64 `json:"startedAt,omitempty"`
	ActiveWorkers int   `json:"activeWorkers"`
	SteadyWorkers int   `json:"steadyWorkers"`
	MaxWorkers    int   `json:"maxWorkers"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
