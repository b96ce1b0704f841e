// Package authorizer talks to the external service that approves card
// payments and card-backed reversals.
package authorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/chargeops/internal/domain"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "authorizer_decisions_total",
	Help: "Authorizer outcomes by result (approved, denied, unavailable)",
}, []string{"result"})

// Decision is the authorizer's answer to a single request.
type Decision struct {
	Approved bool
	Status   string
}

// Trace renders the decision the way it is stored on a charge, prefixed
// with label (APPROVED for payments, CANCELLED for reversals).
func (d Decision) Trace(label string) string {
	return fmt.Sprintf("%s - Status: %s, Authorization: %v", label, d.Status, d.Approved)
}

// Gateway is the contract the payment services depend on.
//
// Authorize returns domain.ErrGatewayUnavailable when the service cannot
// be reached or answers with something unreadable. A readable "no" is a
// Decision with Approved=false and a nil error.
type Gateway interface {
	Authorize(ctx context.Context) (Decision, error)
}

type response struct {
	Status string `json:"status"`
	Data   *struct {
		Authorized bool `json:"authorized"`
	} `json:"data"`
}

// HTTPClient is a Gateway backed by a GET against a fixed URL.
type HTTPClient struct {
	client *resty.Client
	url    string
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPClient{client: c, url: url}
}

func (h *HTTPClient) Authorize(ctx context.Context) (Decision, error) {
	resp, err := h.client.R().SetContext(ctx).Get(h.url)
	if err != nil {
		decisionsTotal.WithLabelValues("unavailable").Inc()
		return Decision{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if !resp.IsSuccess() {
		decisionsTotal.WithLabelValues("unavailable").Inc()
		return Decision{}, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode())
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Data == nil {
		decisionsTotal.WithLabelValues("unavailable").Inc()
		return Decision{}, fmt.Errorf("%w: unreadable response", domain.ErrGatewayUnavailable)
	}

	d := Decision{Approved: body.Data.Authorized, Status: body.Status}
	if d.Approved {
		decisionsTotal.WithLabelValues("approved").Inc()
	} else {
		decisionsTotal.WithLabelValues("denied").Inc()
	}
	return d, nil
}
