package headers

import (
	"strings"
	"testing"

	http "github.com/bogdanfinn/fhttp"
)

func TestBuildHeaders(t *testing.T) {
	InitProfilePool(5)

	h := BuildHeaders("https://eco.ovhcloud.com")

	if !strings.HasPrefix(h.Get("User-Agent"), "Mozilla/5.0") {
		t.Fatalf("unexpected user agent %q", h.Get("User-Agent"))
	}
	if h.Get("Origin") != "https://eco.ovhcloud.com" {
		t.Fatalf("unexpected origin %q", h.Get("Origin"))
	}
	if len(h[http.HeaderOrderKey]) == 0 {
		t.Fatalf("expected header order to be set")
	}
}

func TestBuildHeaders_NoOrigin(t *testing.T) {
	h := BuildHeaders("")
	if h.Get("Origin") != "" || h.Get("Referer") != "" {
		t.Fatalf("expected no origin headers, got %q / %q", h.Get("Origin"), h.Get("Referer"))
	}
}

func TestGenerateSecCHUA(t *testing.T) {
	got := generateSecCHUA("Mozilla/5.0 (X11; Linux x86_64) Chrome/133.0.6943.98 Safari/537.36")
	if !strings.Contains(got, `"Chromium";v="133"`) {
		t.Fatalf("unexpected sec-ch-ua %q", got)
	}
	if !strings.Contains(generateSecCHUA("curl/8"), `v="136"`) {
		t.Fatalf("expected fallback version")
	}
}
