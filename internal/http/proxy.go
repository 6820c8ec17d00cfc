package httpx

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
)

// BackendProxyOptions configures the authenticated reverse proxy.
type BackendProxyOptions struct {
	// BackendURL is the base URL of the academic backend API.
	BackendURL string
	// Transport performs the outbound calls. Pass the identity client's
	// authenticated transport so proxied requests get bearer attach and
	// refresh-and-replay.
	Transport http.RoundTripper
	// StripPrefix is removed from the inbound path before forwarding
	// (e.g. "/api").
	StripPrefix string
	Logger      *slog.Logger
}

// NewBackendProxy builds a reverse proxy forwarding /api/* traffic to the
// backend. The Session middleware must run before it so the request
// context carries the credential store.
func NewBackendProxy(opts BackendProxyOptions) (http.Handler, error) {
	target, err := url.Parse(opts.BackendURL)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "backend_proxy")

	proxy := &httputil.ReverseProxy{
		Transport: opts.Transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.URL.Path = joinProxyPath(target.Path, strings.TrimPrefix(pr.In.URL.Path, opts.StripPrefix))
			pr.Out.Host = target.Host
			pr.SetXForwarded()
			// Credential cookies are for this gateway only; the backend
			// authenticates via the bearer header the transport attaches.
			pr.Out.Header.Del("Cookie")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("proxy error", "path", r.URL.Path, "error", err)
			// The transport surfaces session expiry as a typed error;
			// that must reach the client as expiry, not as an outage.
			if autherrors.KindOf(err) != "" {
				RenderError(w, r, err)
				return
			}
			WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "backend_unreachable", Err: err})
		},
	}
	return proxy, nil
}

func joinProxyPath(base, rest string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return base + rest
}
