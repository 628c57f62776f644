package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/stacklink/internal/auth"
	"github.com/MrSnakeDoc/stacklink/internal/utils"
)

// Owner copies the authenticated owner id from a header set by the auth
// proxy into the request context. Requests without it stay anonymous.
//
// The header is only honored when trustProxy is set and the direct peer
// (RemoteAddr, never a forwarded address) matches trustedProxies. An empty
// trustedProxies list accepts any peer, which is only safe when the
// listener is reachable through the auth proxy alone.
func Owner(header string, trustProxy bool, trustedProxies []string) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(trustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !trustProxy {
				next.ServeHTTP(w, r)
				return
			}
			if !m.IsEmpty() && !m.Allow(utils.ClientIP(r, false)) {
				next.ServeHTTP(w, r)
				return
			}
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				r = r.WithContext(auth.WithOwner(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
