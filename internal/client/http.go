package client

import (
	"sync"
	"sync/atomic"
	"time"

	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

type ProxiedClient struct {
	tls_client.HttpClient
	ProxyURL string
}

// ProxyRing hands out proxies round-robin and forgets the ones that got
// blocked.
type ProxyRing struct {
	mu      sync.Mutex
	proxies []string
	counter uint32
}

func NewProxyRing(proxies []string) *ProxyRing {
	return &ProxyRing{proxies: append([]string(nil), proxies...)}
}

func (r *ProxyRing) Next() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return ""
	}
	idx := atomic.AddUint32(&r.counter, 1)
	return r.proxies[int(idx-1)%len(r.proxies)]
}

// Remove drops proxyURL and returns how many proxies are left.
func (r *ProxyRing) Remove(proxyURL string) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if proxyURL != "" {
		for i, p := range r.proxies {
			if p == proxyURL {
				r.proxies = append(r.proxies[:i], r.proxies[i+1:]...)
				break
			}
		}
	}
	return len(r.proxies)
}

func (r *ProxyRing) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}

func CreateClient(timeout time.Duration, proxyURL string) (*ProxiedClient, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar := tls_client.NewCookieJar()
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithNotFollowRedirects(),
		tls_client.WithCookieJar(jar),
	}
	if proxyURL != "" {
		options = append(options, tls_client.WithProxyUrl(proxyURL))
	}

	c, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, err
	}

	return &ProxiedClient{HttpClient: c, ProxyURL: proxyURL}, nil
}
