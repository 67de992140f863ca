package services

import (
	"math"

	"github.com/n0rdy/approvals/common"
	"github.com/n0rdy/approvals/queue"
)

// QueueMonitor is a read-only view of the approval queue for operators.
type QueueMonitor struct {
	queue *queue.ApprovalQueue
}

func NewQueueMonitor(approvalQueue *queue.ApprovalQueue) *QueueMonitor {
	return &QueueMonitor{
		queue: approvalQueue,
	}
}

func (qm *QueueMonitor) Status() common.QueueStatusResponse {
	size := qm.queue.Size()
	capacity := qm.queue.Capacity()

	usage := 0.0
	if capacity > 0 {
		usage = math.Round(float64(size)*10000/float64(capacity)) / 100
	}

	return common.QueueStatusResponse{
		CurrentSize:       size,
		TotalCapacity:     capacity,
		RemainingCapacity: capacity - size,
		UsagePercentage:   usage,
		InFlight:          qm.queue.InFlight(),
		Status:            statusLabel(size, capacity, usage),
	}
}

func (qm *QueueMonitor) ListQueuedIds() []string {
	return qm.queue.QueuedIds()
}

func (qm *QueueMonitor) CountInstancesOf(listingId string) int {
	return qm.queue.CountInstancesOf(listingId)
}

func statusLabel(size int, capacity int, usage float64) string {
	switch {
	case size == 0:
		return common.EmptyQueueStatus
	case size >= capacity:
		return common.FullQueueStatus
	case usage >= common.HighUsagePercentage:
		return common.HighQueueStatus
	default:
		return common.NormalQueueStatus
	}
}
