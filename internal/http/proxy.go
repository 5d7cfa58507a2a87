package http

import (
	"context"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"time"

	"github.com/redmonkez12/growth-api/internal/httputil"
	"github.com/redmonkez12/growth-api/internal/logging"
)

// AIProxyPrefix is stripped before requests are forwarded
const AIProxyPrefix = "/api/ai"

// NewAIProxy forwards requests to the AI service with the prefix stripped.
// Each request is bounded by timeout; upstream failures answer 502.
// A nil target answers 502 for every request.
func NewAIProxy(target *url.URL, timeout time.Duration) http.Handler {
	if target == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.RespondErrorWithCode(w, "ai service is not configured", httputil.CodeUpstreamUnavailable, http.StatusBadGateway)
		})
	}

	proxy := &stdhttputil.ReverseProxy{
		Rewrite: func(pr *stdhttputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.GetLoggerFromContext(r.Context()).Error("ai proxy request failed",
				"error", err,
				"timeout", r.Context().Err() == context.DeadlineExceeded,
			)
			httputil.RespondErrorWithCode(w, "could not reach the AI service", httputil.CodeUpstreamUnavailable, http.StatusBadGateway)
		},
	}

	stripped := http.StripPrefix(AIProxyPrefix, proxy)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		stripped.ServeHTTP(w, r.WithContext(ctx))
	})
}
