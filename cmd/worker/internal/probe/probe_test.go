package probe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentwars/arena-api/cmd/worker/internal/probe"
)

func TestProbe(t *testing.T) {
	t.Run("Reachable", func(t *testing.T) {
		ctx := context.Background()

		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method, "probe must not transfer a body")
				w.WriteHeader(http.StatusOK)
			}),
		)
		defer server.Close()

		prober := probe.NewHTTPProber()
		outcome := prober.Probe(ctx, server.URL)

		assert.True(t, outcome.Reachable)
		assert.Empty(t, outcome.Err)
	})

	t.Run("NonSuccessStatus", func(t *testing.T) {
		ctx := context.Background()

		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}),
		)
		defer server.Close()

		prober := probe.NewHTTPProber()
		outcome := prober.Probe(ctx, server.URL)

		assert.False(t, outcome.Reachable)
		assert.Equal(t, "HTTP 503", outcome.Err)
	})

	t.Run("UnfollowedRedirectIsNotReachable", func(t *testing.T) {
		ctx := context.Background()

		// No Location header, so the client cannot follow; a 3xx final
		// status is not a working demo.
		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusMultipleChoices)
			}),
		)
		defer server.Close()

		prober := probe.NewHTTPProber()
		outcome := prober.Probe(ctx, server.URL)

		assert.False(t, outcome.Reachable)
		assert.Equal(t, "HTTP 300", outcome.Err)
	})

	t.Run("FollowedRedirectIsReachable", func(t *testing.T) {
		ctx := context.Background()

		target := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		defer target.Close()

		server := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, target.URL, http.StatusFound)
			}),
		)
		defer server.Close()

		prober := probe.NewHTTPProber()
		outcome := prober.Probe(ctx, server.URL)

		assert.True(t, outcome.Reachable, "redirects are followed to the final status")
		assert.Empty(t, outcome.Err)
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		ctx := context.Background()

		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		prober := probe.NewHTTPProber()
		outcome := prober.Probe(ctx, url)

		assert.False(t, outcome.Reachable)
		assert.NotEmpty(t, outcome.Err, "unreachable demo must carry a diagnostic")
	})

	t.Run("UnparseableURL", func(t *testing.T) {
		ctx := context.Background()

		prober := probe.NewHTTPProber()
		outcome := prober.Probe(ctx, "://not-a-url")

		assert.False(t, outcome.Reachable)
		assert.NotEmpty(t, outcome.Err)
	})
}
