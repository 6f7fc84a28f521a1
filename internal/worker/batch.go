package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/citegame/internal/model"
)

// ErrNotRun marks a job the pool dropped because it was cancelled
var ErrNotRun = errors.New("job not run")

// ReviewFetcher loads the review brief a fabrication team produced
type ReviewFetcher interface {
	ReviewBrief(ctx context.Context, fabTeamID string) (*model.ReviewBrief, error)
}

// ReviewJob fetches one team's review brief
type ReviewJob struct {
	TeamID  string
	Fetcher ReviewFetcher
}

// Execute runs the fetch
func (j *ReviewJob) Execute(ctx context.Context) Result {
	brief, err := j.Fetcher.ReviewBrief(ctx, j.TeamID)
	if err != nil {
		return &ReviewResult{TeamID: j.TeamID, Error: fmt.Errorf("review brief %s: %w", j.TeamID, err)}
	}
	return &ReviewResult{TeamID: j.TeamID, Brief: brief}
}

// ReviewResult is the outcome of one ReviewJob
type ReviewResult struct {
	TeamID string
	Brief  *model.ReviewBrief
	Error  error
}

// GetError returns the fetch error, if any
func (r *ReviewResult) GetError() error {
	return r.Error
}

// ReviewBatch fetches the review briefs of many teams concurrently
type ReviewBatch struct {
	fetcher     ReviewFetcher
	concurrency int
}

// NewReviewBatch creates a batch with the given parallelism
func NewReviewBatch(fetcher ReviewFetcher, concurrency int) *ReviewBatch {
	return &ReviewBatch{
		fetcher:     fetcher,
		concurrency: concurrency,
	}
}

// Fetch loads every team's review brief. Results follow the order of teamIDs;
// duplicate ids are fetched once.
func (b *ReviewBatch) Fetch(ctx context.Context, teamIDs []string) []*ReviewResult {
	ids := dedupe(teamIDs)
	if len(ids) == 0 {
		return []*ReviewResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()
	for _, id := range ids {
		pool.Submit(&ReviewJob{TeamID: id, Fetcher: b.fetcher})
	}
	results := pool.Wait()

	out := make([]*ReviewResult, len(ids))
	for i, res := range results {
		if rr, ok := res.(*ReviewResult); ok {
			out[i] = rr
			continue
		}
		out[i] = &ReviewResult{TeamID: ids[i], Error: fmt.Errorf("review brief %s: %w", ids[i], ErrNotRun)}
	}
	return out
}

// Briefs collects the successful results keyed by team id and returns the first error seen
func Briefs(results []*ReviewResult) (map[string]*model.ReviewBrief, error) {
	briefs := make(map[string]*model.ReviewBrief, len(results))
	var firstErr error
	for _, r := range results {
		if r.Error != nil {
			if firstErr == nil {
				firstErr = r.Error
			}
			continue
		}
		briefs[r.TeamID] = r.Brief
	}
	return briefs, firstErr
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
