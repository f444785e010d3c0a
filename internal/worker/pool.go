package worker

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sanbench/internal/filter"
	"github.com/sanbench/internal/parser"
)

// ProgressFunc is called after each file is parsed.
// processed is the number of files done, total is the total number of files.
type ProgressFunc func(processed, total int, currentFile string)

// Pool parses log files concurrently. Results keep the input file order.
type Pool struct {
	Workers    int
	Kinds      parser.KindSet
	FilterOpts filter.Options
	OnProgress ProgressFunc
}

// Process parses every file and returns one result per file, in order.
// A cancelled context stops scheduling further files.
func (p *Pool) Process(ctx context.Context, files []string) ([]parser.Result, error) {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]parser.Result, len(files))
	progress := make(chan string, len(files))
	done := make(chan struct{})

	go func() {
		defer close(done)
		n := 0
		for f := range progress {
			n++
			if p.OnProgress != nil {
				p.OnProgress(n, len(files), f)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range files {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processFile(files[i])
			progress <- files[i]
			return nil
		})
	}
	err := g.Wait()
	close(progress)
	<-done

	if err == nil {
		err = ctx.Err()
	}
	return results, err
}

func (p *Pool) processFile(path string) parser.Result {
	log.WithField("file", path).Debug("parsing")
	result := parser.ParseFile(path, p.Kinds)
	result.Records = filter.Apply(result.Records, p.FilterOpts)
	return result
}

// Records flattens results into one record slice in file order.
func Records(results []parser.Result) []parser.Record {
	n := 0
	for i := range results {
		n += len(results[i].Records)
	}
	out := make([]parser.Record, 0, n)
	for i := range results {
		out = append(out, results[i].Records...)
	}
	return out
}
