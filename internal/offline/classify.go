package offline

import (
	"net/http"
	"path"
	"strings"
)

// Strategy is the response policy chosen for a request.
type Strategy string

const (
	StrategyPassthrough          Strategy = "passthrough"
	StrategyCacheFirst           Strategy = "cache_first"
	StrategyNetworkFirst         Strategy = "network_first"
	StrategyStaleWhileRevalidate Strategy = "stale_while_revalidate"
)

// uncachedSegment marks developer-only sources that are never cached.
const uncachedSegment = "/src/"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".avif": true,
	".svg":  true,
	".ico":  true,
	".bmp":  true,
}

var iconPrefixes = []string{"/icons/", "/assets/icon"}

// Classify picks the strategy for req relative to origin. Rules are
// evaluated in priority order: passthrough, image, html, everything else.
func (c *Controller) Classify(req *http.Request) Strategy {
	if req.Method != http.MethodGet {
		return StrategyPassthrough
	}
	if !c.sameOrigin(req) {
		return StrategyPassthrough
	}

	p := c.relativePath(req.URL.Path)
	if strings.Contains(p, uncachedSegment) {
		return StrategyPassthrough
	}

	if isImage(req, p) {
		return StrategyCacheFirst
	}
	if isHTML(req) {
		return StrategyNetworkFirst
	}
	return StrategyStaleWhileRevalidate
}

func isImage(req *http.Request, p string) bool {
	if req.Header.Get("Sec-Fetch-Dest") == "image" {
		return true
	}
	for _, prefix := range iconPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return imageExtensions[strings.ToLower(path.Ext(p))]
}

func isHTML(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

func (c *Controller) sameOrigin(req *http.Request) bool {
	u := req.URL
	if u.Host == "" {
		return true
	}
	return strings.EqualFold(u.Scheme, c.origin.Scheme) &&
		strings.EqualFold(u.Host, c.origin.Host)
}

// relativePath strips the origin's base path, keeping a leading slash.
func (c *Controller) relativePath(p string) string {
	base := strings.TrimSuffix(c.origin.Path, "/")
	if base != "" && (p == base || strings.HasPrefix(p, base+"/")) {
		p = p[len(base):]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
