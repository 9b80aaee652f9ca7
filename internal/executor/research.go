package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/jacinta/internal/search"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Research searches the web with the job description as the query and keeps
// the top results, one per line.
type Research struct {
	searcher search.Searcher
	topN     int
}

// NewResearch creates a research strategy; topN <= 0 uses search.DefaultTopN.
func NewResearch(s search.Searcher, topN int) *Research {
	if topN <= 0 {
		topN = search.DefaultTopN
	}
	return &Research{searcher: s, topN: topN}
}

func (r *Research) Execute(ctx context.Context, job task.Job) (string, error) {
	query := strings.TrimSpace(job.Description)
	if query == "" {
		return "", fmt.Errorf("research job has an empty query")
	}

	results, err := r.searcher.Search(ctx, query, r.topN)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(results))
	for i, res := range results {
		if i == r.topN {
			break
		}
		if text := res.Text(); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}
