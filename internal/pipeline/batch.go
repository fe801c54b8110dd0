package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/logger"
)

// DefaultConcurrency bounds ProcessAll when no limit is given.
const DefaultConcurrency = 4

// BatchItem is the outcome for one source of a batch.
type BatchItem struct {
	Source document.Source
	Result *Result
	Err    error
}

// ProcessAll processes srcs with at most limit documents in flight. Items
// keep the order of srcs, and a failing source does not stop the others.
// The returned error is non-nil only when ctx ends first.
func (p *Processor) ProcessAll(ctx context.Context, srcs []document.Source, limit int) ([]BatchItem, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	log := logger.FromContext(ctx)

	items := make([]BatchItem, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, src := range srcs {
		items[i].Source = src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			items[i].Result, items[i].Err = p.ProcessInvoice(gctx, src)
			if items[i].Err != nil {
				log.Warn().Err(items[i].Err).Str("source", src.Origin()).Msg("Batch item failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, ctx.Err()
}
