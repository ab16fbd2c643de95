package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const bingBaseURL = "https://www.bing.com/search"

// Result pages shift markup frequently; match snippet containers by
// class fragment instead of exact names.
var (
	snippetClassRE = regexp.MustCompile(`b_lineclamp|b_descript|b_caption`)
	totalResultsRE = regexp.MustCompile(`([\d,]+)\s*results`)
)

// BingEngine scrapes the public Bing results page. No API key required;
// the tradeoff is HTML parsing that follows Bing's markup.
type BingEngine struct {
	client     *http.Client
	baseURL    string
	maxResults int
}

func NewBingEngine(maxResults int) *BingEngine {
	// Bing sets session cookies on the first request and serves richer
	// markup when they come back.
	jar, _ := cookiejar.New(nil)
	return &BingEngine{
		client:     &http.Client{Timeout: 60 * time.Second, Jar: jar},
		baseURL:    bingBaseURL,
		maxResults: maxResults,
	}
}

func (e *BingEngine) Search(ctx context.Context, query, dateRange string) (*Results, error) {
	params := url.Values{}
	params.Set("q", query)
	if f := dateFilter(dateRange); f != "" {
		params.Set("filters", f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bing search: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read bing response: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse bing response: %w", err)
	}

	results := &Results{
		Query:        query,
		DateRange:    dateRange,
		TotalResults: parseTotalResults(doc),
		Results:      []Item{},
	}
	for _, li := range findAll(doc, isResultItem) {
		item, ok := parseResultItem(li)
		if !ok {
			continue
		}
		results.Results = append(results.Results, item)
		if e.maxResults > 0 && len(results.Results) >= e.maxResults {
			break
		}
	}
	return results, nil
}

// dateFilter maps a recency range to Bing's filters parameter. The
// past_year variant uses a day-since-epoch window.
func dateFilter(dateRange string) string {
	switch dateRange {
	case RangePastHour, RangePastDay:
		return `ex1:"ez1"`
	case RangePastWeek:
		return `ex1:"ez2"`
	case RangePastMonth:
		return `ex1:"ez3"`
	case RangePastYear:
		day := time.Now().Unix() / (24 * 60 * 60)
		return fmt.Sprintf(`ex1:"ez5_%d_%d"`, day-365, day)
	default:
		return ""
	}
}

func isResultItem(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "li" && hasClass(n, "b_algo")
}

func parseResultItem(li *html.Node) (Item, bool) {
	var item Item

	// Title and URL come from the h2 > a anchor.
	if h2 := findFirst(li, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "h2"
	}); h2 != nil {
		if a := findFirst(h2, isAnchor); a != nil {
			item.Title = textContent(a)
			item.URL = attr(a, "href")
		}
	}
	if item.Title == "" {
		// Fall back to any anchor with title-like text.
		for _, a := range findAll(li, isAnchor) {
			text := textContent(a)
			if len(text) > 10 && !strings.HasPrefix(text, "http") {
				item.Title = text
				item.URL = attr(a, "href")
				break
			}
		}
	}
	if item.Title == "" {
		return Item{}, false
	}

	for _, n := range findAll(li, func(n *html.Node) bool {
		if n.Type != html.ElementNode || (n.Data != "p" && n.Data != "div") {
			return false
		}
		return snippetClassRE.MatchString(attr(n, "class"))
	}) {
		item.Snippet = textContent(n)
		break
	}
	if item.Snippet == "" {
		for _, p := range findAll(li, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "p"
		}) {
			if text := textContent(p); len(text) > 20 {
				item.Snippet = text
				break
			}
		}
	}

	if item.URL != "" && !strings.HasPrefix(item.URL, "http") {
		if strings.HasPrefix(item.URL, "//") {
			item.URL = "https:" + item.URL
		} else if strings.HasPrefix(item.URL, "/") {
			item.URL = "https://www.bing.com" + item.URL
		}
	}
	return item, true
}

func parseTotalResults(doc *html.Node) int {
	var total int
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.TextNode {
			return true
		}
		m := totalResultsRE.FindStringSubmatch(n.Data)
		if m == nil {
			return true
		}
		if v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			total = v
			return false
		}
		return true
	})
	return total
}

func isAnchor(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "a"
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

// walk visits n and its descendants depth-first; the visitor returns
// false to stop the traversal.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}
