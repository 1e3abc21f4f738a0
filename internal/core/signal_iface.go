package core

import (
	"context"

	"github.com/dkeye/huddle/internal/domain"
)

// EventSource is the push channel carrying locus updates. Run blocks until
// ctx is done or the channel fails.
type EventSource interface {
	Run(ctx context.Context, handle func(domain.LocusEvent)) error
}
