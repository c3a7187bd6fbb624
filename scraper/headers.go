package scraper

import "net/http"

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.85 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:91.0) Gecko/20100101 Firefox/91.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:88.0) Gecko/20100101 Firefox/88.0",
}

// browserHeaderSets is the pool rotated through when RotateHeaders is on.
var browserHeaderSets = func() []http.Header {
	sets := make([]http.Header, 0, len(browserUserAgents))
	for _, ua := range browserUserAgents {
		sets = append(sets, http.Header{
			"User-Agent":      {ua},
			"Accept-Language": {"en-US,en;q=0.9"},
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Referer":         {"https://www.google.com/"},
		})
	}
	return sets
}()
