package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/chargeops/internal/auth"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/models"
	"github.com/punchamoorthee/chargeops/internal/service"
	"go.uber.org/zap"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeops_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chargeops_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Services struct {
	Users        *service.UserService
	Issuance     *service.IssuanceService
	Query        *service.QueryService
	Payment      *service.PaymentService
	Cancellation *service.CancellationService
	Deposit      *service.DepositService
}

type Handler struct {
	svc    Services
	tokens *auth.Issuer
	logger *zap.Logger
}

func NewHandler(svc Services, tokens *auth.Issuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// Router wires every endpoint. Everything under /api/v1 except
// registration and login requires a bearer token.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestID, h.instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/users", h.Register).Methods(http.MethodPost)
	apiV1.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	secured := apiV1.NewRoute().Subrouter()
	secured.Use(h.tokens.Middleware(func(w http.ResponseWriter, err error) {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid bearer token")
	}))
	secured.HandleFunc("/account/balance", h.Balance).Methods(http.MethodGet)
	secured.HandleFunc("/account/deposits", h.Deposit).Methods(http.MethodPost)
	secured.HandleFunc("/charges", h.CreateCharge).Methods(http.MethodPost)
	secured.HandleFunc("/charges/sent", h.ListSent).Methods(http.MethodGet)
	secured.HandleFunc("/charges/received", h.ListReceived).Methods(http.MethodGet)
	secured.HandleFunc("/charges/pay/balance", h.PayWithBalance).Methods(http.MethodPost)
	secured.HandleFunc("/charges/pay/card", h.PayWithCard).Methods(http.MethodPost)
	secured.HandleFunc("/charges/{id:[0-9]+}", h.CancelCharge).Methods(http.MethodDelete)

	return r
}

type requestIDKey struct{}

const requestIDHeader = "X-Request-ID"

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", requestIDFrom(r.Context())))
	})
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err),
			zap.String("request_id", requestIDFrom(r.Context())))
		msg = "Internal Server Error"
	}
	respondWithJSON(w, code, models.ErrorResponse{Error: msg, RequestID: requestIDFrom(r.Context())})
}

// decode reads a JSON body into req and validates its shape.
func decode(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return domain.ErrInvalidInput
	}
	return models.Validate(req)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
