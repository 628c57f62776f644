package offline

import (
	"errors"
	"net/http"
	"net/http/httputil"

	"github.com/MrSnakeDoc/stacklink/internal/logger"
)

// Handler proxies browser requests to the app origin through c.
func (c *Controller) Handler() http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(c.origin)
			pr.SetXForwarded()
		},
		Transport: c,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			status := http.StatusBadGateway
			if errors.Is(err, ErrNoResponse) {
				status = http.StatusGatewayTimeout
			}
			c.logger.Warn("offline proxy failed",
				logger.String("path", r.URL.Path),
				logger.Int("status", status),
				logger.Error(err))
			w.WriteHeader(status)
		},
	}
}
