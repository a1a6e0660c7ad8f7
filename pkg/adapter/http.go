package adapter

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/ermine/pkg/model"
)

const streamReadTimeout = 5 * time.Minute

// newHTTPClient builds a client honoring the provider's proxy setting.
// Streaming responses can stay open for minutes, so the overall timeout is
// generous and the per-request context governs cancellation.
func newHTTPClient(proxy model.ProviderProxy) *http.Client {
	client := &http.Client{Timeout: streamReadTimeout}

	switch p := proxy.(type) {
	case model.ProxyHTTP:
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", p.Address, p.Port),
		}
		if p.Username != "" {
			proxyURL.User = url.UserPassword(p.Username, p.Password)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	default:
		// model.ProxyNone or nil: direct connection
	}

	return client
}
