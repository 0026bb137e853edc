package filter

import (
	"context"
	"maps"
	"slices"
	"sync"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// CodeCanceled is returned when the context ends before every filter ran.
const CodeCanceled = "canceled"

// Chain runs filters in order and stops at the first rejection.
type Chain struct {
	mu         sync.RWMutex
	filters    []Filter
	rejections map[string]int
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{rejections: make(map[string]int)}
}

// Add appends filters to the chain.
func (c *Chain) Add(filters ...Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, filters...)
}

// Execute checks req against every filter that applies to its origin.
// The rejecting filter's name is set on the result.
func (c *Chain) Execute(ctx context.Context, req Request) Result {
	c.mu.RLock()
	filters := c.filters
	c.mu.RUnlock()

	for _, f := range filters {
		if !f.AppliesTo(req.Origin) {
			continue
		}
		if ctx.Err() != nil {
			return Result{Code: CodeCanceled}
		}

		result := f.Check(ctx, req)
		if result.Accepted {
			continue
		}

		result.Filter = f.Name()
		c.mu.Lock()
		c.rejections[result.Filter]++
		c.mu.Unlock()
		zlog.Debug().Msgf("filter: %s rejected %s (%s)", result.Filter, req.Song.Path, result.Code)
		return result
	}
	return Accept()
}

// Filters returns the filters in chain order.
func (c *Chain) Filters() []Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.filters)
}

// Names returns the filter names in chain order.
func (c *Chain) Names() []string {
	return lo.Map(c.Filters(), func(f Filter, _ int) string { return f.Name() })
}

// Rejections returns how many songs each filter has rejected so far.
func (c *Chain) Rejections() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.rejections)
}
