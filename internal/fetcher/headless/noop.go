package headless

import (
	"context"
	"errors"

	"github.com/jobsift/crawlworker/internal/crawl"
)

// ErrDisabled is returned by the no-op fetcher.
var ErrDisabled = errors.New("headless fetching disabled")

// Noop is a placeholder Fetcher used when headless rendering is disabled.
type Noop struct{}

// NewNoop creates a Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails with ErrDisabled.
func (Noop) Fetch(context.Context, crawl.FetchRequest) (crawl.FetchResponse, error) {
	return crawl.FetchResponse{}, ErrDisabled
}
