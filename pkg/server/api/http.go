// Package api provides HTTP and WebSocket API endpoints for the price resolver.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/metrics"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/priority"
	"github.com/StrathCole/oracle-priority/pkg/store"
)

const requestIDHeader = "X-Request-ID"

// Resolver is the set of record operations served over HTTP.
type Resolver interface {
	Initialize(ctx context.Context, asset, name string) (*oracle.AssetPriceRecord, error)
	UpdateRawPriorities(ctx context.Context, asset string, a, b int8) (*oracle.AssetPriceRecord, error)
	UpdateSources(ctx context.Context, asset string, a, b oracle.SourceID) (*oracle.AssetPriceRecord, error)
	Resolve(ctx context.Context, asset string) (oracle.Resolution, error)
	Get(ctx context.Context, asset string) (*oracle.AssetPriceRecord, error)
	List(ctx context.Context) ([]*oracle.AssetPriceRecord, error)
}

// Server represents the HTTP API server.
type Server struct {
	addr           string
	resolver       Resolver
	authorizer     Authorizer
	resolveTimeout time.Duration
	server         *http.Server
	logger         *logging.Logger
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, resolver Resolver, authorizer Authorizer, resolveTimeout time.Duration, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if authorizer == nil {
		authorizer = DenyAll{}
	}
	if resolveTimeout <= 0 {
		resolveTimeout = 15 * time.Second
	}
	return &Server{
		addr:           addr,
		resolver:       resolver,
		authorizer:     authorizer,
		resolveTimeout: resolveTimeout,
		logger:         logger,
	}
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/assets", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{asset}", s.handleGet)
		r.Post("/{asset}/resolve", s.handleResolve)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/", s.handleInitialize)
			r.Put("/{asset}/priorities", s.handleUpdatePriorities)
			r.Put("/{asset}/sources", s.handleUpdateSources)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestID propagates or assigns a request id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// instrument records request metrics keyed by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(endpoint, strconv.Itoa(status), time.Since(start))
		s.logger.Debug("HTTP request", "method", r.Method, "endpoint", endpoint, "status", status,
			"request_id", w.Header().Get(requestIDHeader))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.authorizer.Authorize(r); err != nil {
			s.logger.Warn("Rejected admin request", "path", r.URL.Path, "error", err)
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.resolver.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]AssetView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, NewAssetView(rec))
	}
	s.sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.resolver.Get(r.Context(), chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, NewAssetView(rec))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.resolveTimeout)
	defer cancel()

	res, err := s.resolver.Resolve(ctx, chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, NewResolutionView(res))
}

// InitializeRequest is the body of POST /v1/assets.
type InitializeRequest struct {
	Asset string `json:"asset"`
	Name  string `json:"name,omitempty"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.resolver.Initialize(r.Context(), req.Asset, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, NewAssetView(rec))
}

// PrioritiesRequest is the body of PUT /v1/assets/{asset}/priorities. Negative values
// disable a slot.
type PrioritiesRequest struct {
	A *int8 `json:"a"`
	B *int8 `json:"b"`
}

func (s *Server) handleUpdatePriorities(w http.ResponseWriter, r *http.Request) {
	var req PrioritiesRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.A == nil || req.B == nil {
		s.writeError(w, fmt.Errorf("%w: both a and b are required", errBadRequest))
		return
	}
	rec, err := s.resolver.UpdateRawPriorities(r.Context(), chi.URLParam(r, "asset"), *req.A, *req.B)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, NewAssetView(rec))
}

// SourcesRequest is the body of PUT /v1/assets/{asset}/sources. Slot a takes a hex
// feed id, slot b a base58 account address; an empty value clears the slot.
type SourcesRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (s *Server) handleUpdateSources(w http.ResponseWriter, r *http.Request) {
	var req SourcesRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	a, err := oracle.SlotA.ParseSourceID(req.A)
	if err != nil {
		s.writeError(w, err)
		return
	}
	b, err := oracle.SlotB.ParseSourceID(req.B)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.resolver.UpdateSources(r.Context(), chi.URLParam(r, "asset"), a, b)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, NewAssetView(rec))
}

var errBadRequest = errors.New("bad request")

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrRecordExists):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrNoPriceAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, fixedpoint.ErrOverflow), errors.Is(err, fixedpoint.ErrNegative):
		return http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrInvalidPriorities),
		errors.Is(err, oracle.ErrInvalidAsset),
		errors.Is(err, oracle.ErrNameTooLong),
		errors.Is(err, oracle.ErrInvalidSourceID),
		errors.Is(err, priority.ErrRankOutOfRange),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	s.sendJSON(w, status, errorResponse{Error: err.Error()})
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
