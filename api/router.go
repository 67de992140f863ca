package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/n0rdy/approvals/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Gateway interface {
	EnqueueOne(ctx context.Context, listingId string) error
	EnqueueAllPending(ctx context.Context, source string) (int, error)
	Clear() int
}

type Workers interface {
	ProcessBacklog() (int, error)
	Status() common.WorkersStatusResponse
}

type Monitor interface {
	Status() common.QueueStatusResponse
	ListQueuedIds() []string
	CountInstancesOf(listingId string) int
}

type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

type RouterConfig struct {
	AuthSecret         string
	MetricsEnabled     bool
	RateLimitPerMinute int
}

type Router struct {
	gateway       Gateway
	workers       Workers
	monitor       Monitor
	healthChecker HealthChecker
	cfg           RouterConfig
}

func NewRouter(gateway Gateway, workers Workers, monitor Monitor, healthChecker HealthChecker, cfg RouterConfig) *Router {
	return &Router{
		gateway:       gateway,
		workers:       workers,
		monitor:       monitor,
		healthChecker: healthChecker,
		cfg:           cfg,
	}
}

func (ar *Router) NewRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthcheck", ar.healthcheck)
	if ar.cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Route("/approval-queue", func(r chi.Router) {
		if ar.cfg.RateLimitPerMinute > 0 {
			r.Use(rateLimitByIP(ar.cfg.RateLimitPerMinute))
		}
		r.Use(apiKeyTokenAuth(ar.cfg.AuthSecret))

		r.Post("/enqueue/{listingId}", ar.enqueueOne)
		r.Post("/enqueue-all", ar.enqueueAll)
		r.Get("/status", ar.queueStatus)
		r.Delete("/clear", ar.clear)
		r.Post("/process", ar.process)
		r.Get("/workers", ar.workersStatus)

		r.Route("/debug", func(r chi.Router) {
			r.Get("/room-ids", ar.queuedIds)
			r.Get("/room/{listingId}/count", ar.instanceCount)
		})
	})

	return router
}

func (ar *Router) enqueueOne(w http.ResponseWriter, req *http.Request) {
	listingId := strings.TrimSpace(chi.URLParam(req, "listingId"))

	err := ar.gateway.EnqueueOne(req.Context(), listingId)
	if err != nil {
		var ae common.ApprovalError
		if !errors.As(err, &ae) || ae.Code == common.ErrCodeInternal {
			ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
			return
		}
		ar.sendJsonResponse(w, http.StatusBadRequest, common.EnqueueResponse{
			Success:   false,
			Message:   enqueueFailureMessage(ae.Code),
			ListingId: listingId,
		})
		return
	}

	ar.sendJsonResponse(w, http.StatusOK, common.EnqueueResponse{
		Success:   true,
		Message:   "listing enqueued for approval",
		ListingId: listingId,
	})
}

func (ar *Router) enqueueAll(w http.ResponseWriter, req *http.Request) {
	count, err := ar.gateway.EnqueueAllPending(req.Context(), common.BulkSource)
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, common.EnqueueAllResponse{
		Success:       true,
		EnqueuedCount: count,
	})
}

func (ar *Router) queueStatus(w http.ResponseWriter, req *http.Request) {
	ar.sendJsonResponse(w, http.StatusOK, ar.monitor.Status())
}

func (ar *Router) clear(w http.ResponseWriter, req *http.Request) {
	ar.sendJsonResponse(w, http.StatusOK, common.ClearResponse{
		Success:      true,
		ClearedCount: ar.gateway.Clear(),
	})
}

func (ar *Router) process(w http.ResponseWriter, req *http.Request) {
	started, err := ar.workers.ProcessBacklog()
	if err != nil {
		log.Error().Err(err).Msg("failed to start backlog processing")
		ar.sendErrorResponse(w, http.StatusServiceUnavailable, common.ErrCodeUnavailableWorkersStopped)
		return
	}

	message := "backlog processing started"
	if started == 0 {
		message = "no additional workers needed"
	}
	ar.sendJsonResponse(w, http.StatusOK, common.ProcessResponse{
		Success: true,
		Message: message,
	})
}

func (ar *Router) workersStatus(w http.ResponseWriter, req *http.Request) {
	ar.sendJsonResponse(w, http.StatusOK, ar.workers.Status())
}

func (ar *Router) queuedIds(w http.ResponseWriter, req *http.Request) {
	ids := ar.monitor.ListQueuedIds()
	ar.sendJsonResponse(w, http.StatusOK, common.QueuedIdsResponse{
		ListingIds: ids,
		Count:      len(ids),
	})
}

func (ar *Router) instanceCount(w http.ResponseWriter, req *http.Request) {
	listingId := chi.URLParam(req, "listingId")
	ar.sendJsonResponse(w, http.StatusOK, common.InstanceCountResponse{
		ListingId: listingId,
		Count:     ar.monitor.CountInstancesOf(listingId),
	})
}

func (ar *Router) healthcheck(w http.ResponseWriter, req *http.Request) {
	if !ar.healthChecker.IsHealthy(req.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	ar.sendNoContentEmptyResponse(w)
}

func (ar *Router) sendNoContentEmptyResponse(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (ar *Router) sendJsonResponse(w http.ResponseWriter, httpCode int, payload interface{}) {
	respBody, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling response body")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	w.Write(respBody)
}

func (ar *Router) sendErrorResponse(w http.ResponseWriter, httpCode int, errCode string) {
	ar.sendJsonResponse(w, httpCode, common.ErrorResponse{Code: errCode})
}

func (ar *Router) sendResponseFromError(w http.ResponseWriter, err error) {
	var ae common.ApprovalError
	if !errors.As(err, &ae) {
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
		return
	}

	switch {
	case strings.HasPrefix(ae.Code, "bad_request"):
		ar.sendErrorResponse(w, http.StatusBadRequest, ae.Code)
	case strings.HasPrefix(ae.Code, "not_found"):
		ar.sendErrorResponse(w, http.StatusNotFound, ae.Code)
	case strings.HasPrefix(ae.Code, "conflict"):
		ar.sendErrorResponse(w, http.StatusConflict, ae.Code)
	case strings.HasPrefix(ae.Code, "unavailable"):
		ar.sendErrorResponse(w, http.StatusServiceUnavailable, ae.Code)
	default:
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
	}
}

func enqueueFailureMessage(code string) string {
	switch code {
	case common.ErrCodeConflictAlreadyQueued:
		return "listing is already queued or being processed"
	case common.ErrCodeUnavailableQueueFull:
		return "approval queue is full"
	case common.ErrCodeUnavailableQueueClosed:
		return "approval queue is shutting down"
	case common.ErrCodeNotFoundListing:
		return "listing not found"
	case common.ErrCodeBadRequestListingNotPending:
		return "listing is not pending approval"
	case common.ErrCodeBadRequestListingId:
		return "invalid listing id"
	default:
		return code
	}
}
