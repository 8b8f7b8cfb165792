// Package rpc exposes the lending and auction engines over HTTP: read
// endpoints for markets, positions, prices and auctions, plus the write
// endpoints external liquidation bots drive.
package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"isolend/native/auction"
	"isolend/native/lending"
	"isolend/observability"
)

const requestLimit = 1 << 20 // 1 MiB

type contextKey string

const requestIDKey contextKey = "request-id"

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Server bundles the engines behind the HTTP API.
type Server struct {
	pools  map[string]*lending.Pool
	engine *auction.Engine
	prices lending.PriceSource
	log    *slog.Logger
}

// NewServer constructs the API server. The logger must not be nil.
func NewServer(engine *auction.Engine, prices lending.PriceSource, log *slog.Logger) *Server {
	return &Server{
		pools:  make(map[string]*lending.Pool),
		engine: engine,
		prices: prices,
		log:    log,
	}
}

// AddPool registers a market's pool with the read surface.
func (s *Server) AddPool(pool *lending.Pool) {
	s.pools[pool.Key()] = pool
}

// marketKeys returns the registered market keys in stable order.
func (s *Server) marketKeys() []string {
	keys := make([]string, 0, len(s.pools))
	for key := range s.pools {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Router assembles the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/markets", s.listMarkets)
		r.Get("/markets/{key}", s.getMarket)
		r.Get("/markets/{key}/positions", s.listPositions)
		r.Get("/markets/{key}/positions/{address}", s.getPosition)
		r.Get("/prices/{token}", s.getPrice)

		r.Get("/auctions", s.listAuctions)
		r.Get("/auctions/{id}", s.getAuction)
		r.Get("/auctions/{id}/price", s.getAuctionPrice)
		r.Post("/auctions", s.startAuction)
		r.Post("/auctions/{id}/liquidate", s.liquidateAuction)
		r.Post("/auctions/{id}/cancel", s.cancelAuction)
	})
	return r
}

// requestID stamps every request with a UUID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// observe logs each request and feeds the API metrics registry.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(started)

		observability.ModuleMetrics().Observe("rpc", r.Method+" "+r.URL.Path, rec.status, duration)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}
