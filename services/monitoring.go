package services

import (
	"context"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type MonitoringService struct {
	storage Pinger
}

func NewMonitoringService(storage Pinger) *MonitoringService {
	return &MonitoringService{
		storage: storage,
	}
}

func (ms *MonitoringService) IsHealthy(ctx context.Context) bool {
	err := ms.storage.Ping(ctx)
	return err == nil
}
