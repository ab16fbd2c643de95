package tools

import (
	"context"

	"github.com/haasonsaas/helmsman/internal/search"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// SearchToolbox exposes the web search engine.
type SearchToolbox struct {
	engine search.Engine
}

func NewSearchToolbox(engine search.Engine) *SearchToolbox {
	return &SearchToolbox{engine: engine}
}

func (t *SearchToolbox) Name() string { return "search" }

func (t *SearchToolbox) Schemas() []Schema {
	return []Schema{
		{
			Name:        "search_web",
			Description: "Search the web for real-time information. Use when up-to-date facts or external references are needed.",
			Params: map[string]Param{
				"query": {"type": "string", "description": "Search query, 3-5 keywords work best"},
				"date_range": {
					"type":        "string",
					"description": "(Optional) Time range filter for the results",
					"enum": []string{
						search.RangeAll,
						search.RangePastHour,
						search.RangePastDay,
						search.RangePastWeek,
						search.RangePastMonth,
						search.RangePastYear,
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *SearchToolbox) Invoke(ctx context.Context, function string, args map[string]any) *models.ToolResult {
	if function != "search_web" {
		return models.Fail("unknown search function " + function)
	}
	results, err := t.engine.Search(ctx, argString(args, "query"), argString(args, "date_range"))
	if err != nil {
		return models.Fail(err.Error())
	}
	return models.Ok(results)
}
