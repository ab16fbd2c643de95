// Package search provides the web search engine behind the search_web
// tool.
package search

import "context"

// DateRange values accepted by Search. "all" or empty disables the
// recency filter.
const (
	RangeAll       = "all"
	RangePastHour  = "past_hour"
	RangePastDay   = "past_day"
	RangePastWeek  = "past_week"
	RangePastMonth = "past_month"
	RangePastYear  = "past_year"
)

// Item is a single search hit.
type Item struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Results is the payload returned to the model.
type Results struct {
	Query        string `json:"query"`
	DateRange    string `json:"date_range,omitempty"`
	TotalResults int    `json:"total_results"`
	Results      []Item `json:"results"`
}

// Engine answers web queries with an optional recency filter.
type Engine interface {
	Search(ctx context.Context, query, dateRange string) (*Results, error)
}
