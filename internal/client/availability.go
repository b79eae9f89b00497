package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/servermon/internal/headers"
	"github.com/yourneighborhoodchef/servermon/internal/metrics"
	"github.com/yourneighborhoodchef/servermon/internal/monitor"
	"github.com/yourneighborhoodchef/servermon/internal/ratelimit"
)

var (
	ErrBlocked          = errors.New("request blocked by upstream")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

type Options struct {
	BaseURL           string
	Subsidiary        string
	Origin            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Proxies           []string
}

// Fetcher reads availability and the offering catalog from the OVHcloud
// public API.
type Fetcher struct {
	baseURL    string
	subsidiary string
	origin     string
	timeout    time.Duration
	jar        *ratelimit.TokenJar
	proxies    *ProxyRing
	logger     *slog.Logger

	mu     sync.Mutex
	client *ProxiedClient
}

func NewFetcher(opts Options, logger *slog.Logger) (*Fetcher, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://eu.api.ovh.com"
	}
	if opts.Subsidiary == "" {
		opts.Subsidiary = "FR"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &Fetcher{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		subsidiary: opts.Subsidiary,
		origin:     opts.Origin,
		timeout:    opts.Timeout,
		jar:        ratelimit.NewTokenJar(opts.RequestsPerSecond, opts.Burst),
		proxies:    NewProxyRing(opts.Proxies),
		logger:     logger.With(slog.String("category", "source")),
	}
	if _, err := f.httpClient(); err != nil {
		f.jar.Stop()
		return nil, fmt.Errorf("create http client: %w", err)
	}
	return f, nil
}

func (f *Fetcher) Close() {
	f.jar.Stop()
}

func (f *Fetcher) FetchAvailability(ctx context.Context, planCode string) (monitor.Snapshot, error) {
	q := url.Values{}
	q.Set("planCode", planCode)
	body, err := f.get(ctx, "availability", "/1.0/dedicated/server/datacenter/availabilities?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return parseAvailabilities(body, planCode)
}

func (f *Fetcher) FetchOfferings(ctx context.Context) ([]monitor.Offering, error) {
	q := url.Values{}
	q.Set("ovhSubsidiary", f.subsidiary)
	body, err := f.get(ctx, "catalog", "/1.0/order/catalog/public/eco?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return parseCatalog(body)
}

func (f *Fetcher) httpClient() (*ProxiedClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	c, err := CreateClient(f.timeout, f.proxies.Next())
	if err != nil {
		return nil, err
	}
	f.client = c
	return c, nil
}

// rotate drops the current client and, when it went through a proxy,
// removes that proxy from the ring.
func (f *Fetcher) rotate(c *ProxiedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != c {
		return
	}
	f.client = nil
	if c.ProxyURL != "" {
		remaining := f.proxies.Remove(c.ProxyURL)
		f.logger.Warn("proxy blocked, removed from rotation",
			slog.String("proxy", c.ProxyURL),
			slog.Int("remaining", remaining))
	}
}

func (f *Fetcher) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	if err := f.jar.Wait(ctx); err != nil {
		return nil, err
	}

	c, err := f.httpClient()
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header = headers.BuildHeaders(f.origin)

	resp, err := c.Do(req)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", endpoint, err)
	}
	metrics.SourceRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		f.rotate(c)
		return nil, fmt.Errorf("%s: %w (status %d)", endpoint, ErrBlocked, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%s: %w %d: %s", endpoint, ErrUnexpectedStatus, resp.StatusCode, sample(body))
	}
}

type availabilityRecord struct {
	FQN         string `json:"fqn"`
	PlanCode    string `json:"planCode"`
	Memory      string `json:"memory"`
	Storage     string `json:"storage"`
	Datacenters []struct {
		Datacenter   string `json:"datacenter"`
		Availability string `json:"availability"`
	} `json:"datacenters"`
}

// parseAvailabilities turns the availability listing into a configured
// snapshot keyed by fully qualified configuration name.
func parseAvailabilities(body []byte, planCode string) (monitor.Snapshot, error) {
	var records []availabilityRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("parse availability: %w (sample: %s)", err, sample(body))
	}

	snap := make(monitor.Snapshot, len(records))
	for _, r := range records {
		if planCode != "" && r.PlanCode != "" && r.PlanCode != planCode {
			continue
		}
		key := r.FQN
		if key == "" {
			key = strings.Join([]string{r.PlanCode, r.Memory, r.Storage}, ".")
		}
		dcs := make(map[string]string, len(r.Datacenters))
		for _, dc := range r.Datacenters {
			if dc.Datacenter == "" {
				continue
			}
			dcs[dc.Datacenter] = dc.Availability
		}
		snap[key] = monitor.ConfiguredStatus(r.Memory, r.Storage, dcs)
	}
	return snap, nil
}

type catalog struct {
	Plans []struct {
		PlanCode    string `json:"planCode"`
		InvoiceName string `json:"invoiceName"`
		Product     string `json:"product"`
	} `json:"plans"`
	Products []struct {
		Name  string `json:"name"`
		Blobs *struct {
			Technical *struct {
				Server *struct {
					CPU *struct {
						Brand string `json:"brand"`
						Model string `json:"model"`
					} `json:"cpu"`
				} `json:"server"`
				Memory *struct {
					Size int `json:"size"`
				} `json:"memory"`
				Storage *struct {
					Disks []struct {
						Number     int    `json:"number"`
						Capacity   int    `json:"capacity"`
						Technology string `json:"technology"`
					} `json:"disks"`
				} `json:"storage"`
				Bandwidth *struct {
					Level int `json:"level"`
				} `json:"bandwidth"`
			} `json:"technical"`
		} `json:"blobs"`
	} `json:"products"`
}

func parseCatalog(body []byte) ([]monitor.Offering, error) {
	var c catalog
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w (sample: %s)", err, sample(body))
	}

	type specs struct{ cpu, memory, storage, bandwidth string }
	byProduct := make(map[string]specs, len(c.Products))
	for _, p := range c.Products {
		if p.Blobs == nil || p.Blobs.Technical == nil {
			continue
		}
		t := p.Blobs.Technical
		var s specs
		if t.Server != nil && t.Server.CPU != nil {
			s.cpu = strings.TrimSpace(t.Server.CPU.Brand + " " + t.Server.CPU.Model)
		}
		if t.Memory != nil && t.Memory.Size > 0 {
			s.memory = fmt.Sprintf("%dGB", t.Memory.Size)
		}
		if t.Storage != nil && len(t.Storage.Disks) > 0 {
			parts := make([]string, 0, len(t.Storage.Disks))
			for _, d := range t.Storage.Disks {
				parts = append(parts, strings.TrimSpace(fmt.Sprintf("%dx%dGB %s", d.Number, d.Capacity, d.Technology)))
			}
			s.storage = strings.Join(parts, " + ")
		}
		if t.Bandwidth != nil && t.Bandwidth.Level > 0 {
			s.bandwidth = fmt.Sprintf("%dMbps", t.Bandwidth.Level)
		}
		byProduct[p.Name] = s
	}

	out := make([]monitor.Offering, 0, len(c.Plans))
	for _, p := range c.Plans {
		if p.PlanCode == "" {
			continue
		}
		s := byProduct[p.Product]
		out = append(out, monitor.Offering{
			ProductCode: p.PlanCode,
			Name:        p.InvoiceName,
			CPU:         s.cpu,
			Memory:      s.memory,
			Storage:     s.storage,
			Bandwidth:   s.bandwidth,
		})
	}
	return out, nil
}

func sample(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
