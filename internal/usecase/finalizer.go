package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PaperHarvester/internal/ports"
	"PaperHarvester/internal/store"
)

const defaultFinalizeTimeout = 30 * time.Second

// Finalizer persists whatever the store holds and regenerates the report. It
// runs at the end of every crawl, including interrupted and failed ones.
type Finalizer struct {
	store    *store.Store
	renderer ports.Renderer
	clock    func() time.Time
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFinalizer shares the crawl loop's store. renderer may be nil.
func NewFinalizer(st *store.Store, renderer ports.Renderer, clock func() time.Time, logger *slog.Logger) *Finalizer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		store:    st,
		renderer: renderer,
		clock:    clock,
		timeout:  defaultFinalizeTimeout,
		logger:   logger,
	}
}

// Finalize flushes and renders a non-empty archive. It detaches from ctx
// cancellation so it still completes after an interrupt.
func (f *Finalizer) Finalize(ctx context.Context, reason string) error {
	if f.store.Empty() {
		f.logger.Info("nothing to save", "reason", reason)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	var errs []error
	if err := f.store.Flush(ctx); err != nil {
		f.logger.Error("final flush failed", "reason", reason, "error", err)
		errs = append(errs, err)
	}
	if f.renderer != nil {
		if err := f.renderer.Render(f.store.Snapshot(), f.clock()); err != nil {
			f.logger.Error("report render failed", "reason", reason, "error", err)
			errs = append(errs, fmt.Errorf("render report: %w", err))
		}
	}

	if len(errs) == 0 {
		f.logger.Info("archive finalized", "reason", reason, "entries", f.store.Len())
	}
	return errors.Join(errs...)
}
