package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/n0rdy/approvals/common"

	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
)

var (
	unauthorizedRespBody    []byte
	tooManyRequestsRespBody []byte
)

func init() {
	var err error
	unauthorizedRespBody, err = json.Marshal(common.ErrorResponse{Code: common.ErrCodeUnauthorized})
	if err != nil {
		panic(err)
	}
	tooManyRequestsRespBody, err = json.Marshal(common.ErrorResponse{Code: common.ErrCodeTooManyRequests})
	if err != nil {
		panic(err)
	}
}

func apiKeyTokenAuth(authSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			apiKey := req.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(authSecret)) != 1 {
				log.Error().Str("path", req.URL.Path).Msg("invalid API key")
				sendUnauthorizedErrorResponse(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func rateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
			log.Warn().Str("path", req.URL.Path).Str("remote_addr", req.RemoteAddr).Msg("admin API rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write(tooManyRequestsRespBody)
		}),
	)
}

func sendUnauthorizedErrorResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write(unauthorizedRespBody)
}
