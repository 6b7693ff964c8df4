package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/worker/internal/probe",
)

const probeTimeout = time.Second * 12

// Outcome of a single demo reachability check. Unreachable demos are scored,
// never surfaced as errors.
type Outcome struct {
	Reachable bool
	// Err is the diagnostic for an unreachable demo. Empty when Reachable.
	Err string
}

//go:generate mockgen -destination ./mock/mock.go -package mock . Prober

type Prober interface {
	Probe(ctx context.Context, url string) Outcome
}

// Ensure HTTPProber implements Prober interface.
var _ Prober = (*HTTPProber)(nil)

// HTTPProber checks existence with a HEAD request so no body is transferred.
// Each tick probes once: a flaky demo should show up as flaky, so the client
// carries no retries.
type HTTPProber struct {
	client *retryablehttp.Client
}

func NewHTTPProber() *HTTPProber {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.HTTPClient.Timeout = probeTimeout
	client.Logger = nil

	return &HTTPProber{client: client}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) Outcome {
	ctx, span := tracer.Start(ctx, "HTTPProber.Probe", trace.WithAttributes(
		attribute.String("url", url),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		span.AddEvent("bad url", trace.WithAttributes(attribute.String("error", err.Error())))
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "demo url is not probeable")
		return Outcome{Reachable: false, Err: err.Error()}
	}

	response, err := p.client.Do(request)
	if err != nil {
		span.AddEvent("unreachable", trace.WithAttributes(attribute.String("error", err.Error())))
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "demo unreachable")
		return Outcome{Reachable: false, Err: err.Error()}
	}
	defer response.Body.Close()

	span.SetAttributes(attribute.Int("statusCode", response.StatusCode))

	// Redirects are followed by the client; the final status must be 2xx.
	if response.StatusCode < 200 || response.StatusCode > 299 {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "demo returned non-success status")
		return Outcome{
			Reachable: false,
			Err:       fmt.Sprintf("HTTP %d", response.StatusCode),
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "demo reachable")
	return Outcome{Reachable: true}
}
