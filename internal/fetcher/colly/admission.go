package collyfetcher

import (
	"context"
	"fmt"

	"github.com/borshchevsky/tax-forms-scraper/internal/telemetry"
)

// gate is the counting admission primitive bounding in-flight network
// operations across page and binary fetches. Acquire before issuing a
// request, release on completion or failure.
type gate struct {
	slots chan struct{}
}

func newGate(capacity int) *gate {
	if capacity <= 0 {
		capacity = 10
	}
	return &gate{slots: make(chan struct{}, capacity)}
}

func (g *gate) acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		telemetry.IncInFlight()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("admission wait: %w", ctx.Err())
	}
}

func (g *gate) release() {
	select {
	case <-g.slots:
		telemetry.DecInFlight()
	default:
		// A release without a matching acquire means the accounting is
		// broken; continuing would silently lift the ceiling.
		panic("collyfetcher: admission gate released without acquire")
	}
}
