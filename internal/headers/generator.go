package headers

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	http "github.com/bogdanfinn/fhttp"
)

type Profile struct {
	ua       string
	secCHUA  string
	platform string
	langIdx  int
	encIdx   int
	cacheIdx int
}

var (
	langOpts = []string{
		"en-US,en;q=0.9",
		"en-GB,en;q=0.9,en-US;q=0.8",
		"fr-FR,fr;q=0.9,en;q=0.8",
		"de-DE,de;q=0.9,en;q=0.8",
		"en,en-US;q=0.9",
	}
	encOpts = []string{
		"gzip, deflate, br",
		"gzip, deflate, br, zstd",
		"br, gzip, deflate",
	}
	cacheOpts = []string{
		"no-cache",
		"max-age=0",
		"",
	}

	headerOrder = []string{
		"Accept",
		"Accept-Language",
		"Accept-Encoding",
		"User-Agent",
		"Sec-CH-UA",
		"Sec-CH-UA-Mobile",
		"Sec-CH-UA-Platform",
		"Sec-Fetch-Site",
		"Sec-Fetch-Mode",
		"Sec-Fetch-Dest",
		"Cache-Control",
		"Content-Type",
		"Origin",
		"Referer",
	}
)

var profilePool = sync.Pool{
	New: func() interface{} {
		return generateProfile()
	},
}

func generateUA() (ua, platform string) {
	chrome := rand.Intn(11) + 130
	switch rand.Intn(3) {
	case 0:
		return fmt.Sprintf(
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36",
			chrome, rand.Intn(7000)+1000, rand.Intn(200),
		), "Windows"
	case 1:
		return fmt.Sprintf(
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_%d) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36",
			rand.Intn(8), chrome, rand.Intn(7000)+1000, rand.Intn(200),
		), "macOS"
	default:
		return fmt.Sprintf(
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36",
			chrome, rand.Intn(7000)+1000, rand.Intn(200),
		), "Linux"
	}
}

func generateSecCHUA(ua string) string {
	const fallback = "136"
	ver := fallback
	if idx := strings.Index(ua, "Chrome/"); idx != -1 {
		rest := ua[idx+7:]
		if j := strings.IndexByte(rest, '.'); j != -1 {
			ver = rest[:j]
		}
	}
	return fmt.Sprintf(
		`"Not:A-Brand";v="24", "Chromium";v="%s", "Google Chrome";v="%s"`,
		ver, ver,
	)
}

func generateProfile() Profile {
	ua, platform := generateUA()
	return Profile{
		ua:       ua,
		secCHUA:  generateSecCHUA(ua),
		platform: platform,
		langIdx:  rand.Intn(len(langOpts)),
		encIdx:   rand.Intn(len(encOpts)),
		cacheIdx: rand.Intn(len(cacheOpts)),
	}
}

// BuildHeaders returns browser-like JSON API headers with a stable order.
// origin may be empty.
func BuildHeaders(origin string) http.Header {
	profile := profilePool.Get().(Profile)
	defer profilePool.Put(profile)

	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", langOpts[profile.langIdx])
	h.Set("Accept-Encoding", encOpts[profile.encIdx])
	h.Set("User-Agent", profile.ua)
	h.Set("Sec-CH-UA", profile.secCHUA)
	h.Set("Sec-CH-UA-Mobile", "?0")
	h.Set("Sec-CH-UA-Platform", `"`+profile.platform+`"`)
	h.Set("Sec-Fetch-Site", "same-site")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Dest", "empty")
	if cc := cacheOpts[profile.cacheIdx]; cc != "" {
		h.Set("Cache-Control", cc)
	}
	if origin != "" {
		h.Set("Origin", origin)
		h.Set("Referer", origin+"/")
	}

	h[http.HeaderOrderKey] = headerOrder

	return h
}

func InitProfilePool(count int) {
	for i := 0; i < count; i++ {
		profilePool.Put(generateProfile())
	}
}
