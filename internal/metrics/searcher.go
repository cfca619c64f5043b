package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/noise/internal/breaker"
	"github.com/alexanderramin/noise/internal/search"
)

type instrumentedSearcher struct {
	next search.Searcher
	c    *Collector
}

// InstrumentSearcher counts every search call made through s.
func InstrumentSearcher(s search.Searcher, c *Collector) search.Searcher {
	return &instrumentedSearcher{next: s, c: c}
}

func (i *instrumentedSearcher) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	start := time.Now()
	res, err := i.next.Search(ctx, query, limit)
	i.c.RecordExternal("search", searchOutcome(err), time.Since(start))
	return res, err
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, breaker.ErrOpen):
		return "BREAKER_OPEN"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}
