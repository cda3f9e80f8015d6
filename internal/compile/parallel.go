package compile

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/inodb/mirus/internal/parser"
	"github.com/inodb/mirus/internal/source"
)

// genomeJob names one organism genome table to fetch.
type genomeJob struct {
	Seq  int
	Abbr string
}

// genomeResult holds the parsed features of one genome table.
type genomeResult struct {
	Seq      int
	Abbr     string
	Features []parser.Feature
	Missing  bool // the source has no table for this organism
	Err      error
}

// fetchGenomes fetches and parses genome tables using a pool of workers.
// Results are sent in arrival order; use collectGenomes to consume them in
// organism order. If workers is 0, runtime.NumCPU() is used.
func fetchGenomes(ctx context.Context, src source.Source, version string, abbrs []string, workers int) <-chan genomeResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan genomeJob, len(abbrs))
	for i, abbr := range abbrs {
		jobs <- genomeJob{Seq: i, Abbr: abbr}
	}
	close(jobs)

	results := make(chan genomeResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- fetchGenome(ctx, src, version, job)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func fetchGenome(ctx context.Context, src source.Source, version string, job genomeJob) genomeResult {
	res := genomeResult{Seq: job.Seq, Abbr: job.Abbr}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	rc, err := src.Open(ctx, version, source.GenomeFile(job.Abbr))
	if errors.Is(err, source.ErrNotFound) {
		res.Missing = true
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("open genome %s: %w", job.Abbr, err)
		return res
	}
	defer rc.Close()

	res.Features, err = parser.ParseGenome(rc)
	if err != nil {
		res.Err = fmt.Errorf("parse genome %s: %w", job.Abbr, err)
	}
	return res
}

// collectGenomes calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until their turn.
// Blocks until the results channel is closed.
func collectGenomes(results <-chan genomeResult, fn func(genomeResult) error) error {
	pending := make(map[int]genomeResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
