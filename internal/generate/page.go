package generate

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const defaultMaxPageBytes = 512 * 1024

// PageFetcher downloads a web page and reduces it to plaintext suitable
// for LLM extraction.
type PageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewPageFetcher creates a PageFetcher. maxBytes caps how much of the
// response body is read; zero means the default cap.
func NewPageFetcher(timeout time.Duration, maxBytes int64) *PageFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxPageBytes
	}
	return &PageFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		maxBytes: maxBytes,
	}
}

// NormalizeURL prepends https:// when the scheme is missing. Invalid
// URLs are returned unchanged; the fetch will surface the error.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "" {
		return "https://" + raw
	}
	return raw
}

// Fetch downloads targetURL and returns its visible text.
func (f *PageFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "generate: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadScoreBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "generate: fetch page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", eris.Errorf("generate: fetch page: status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, f.maxBytes)
	text, err := pageText(body)
	if err != nil {
		return "", eris.Wrap(err, "generate: parse page")
	}
	if text == "" {
		return "", eris.New("generate: empty page")
	}
	return text, nil
}

var (
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// pageText strips non-content elements and collapses whitespace.
func pageText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
	})

	text := spaceRe.ReplaceAllString(b.String(), " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = newlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}
