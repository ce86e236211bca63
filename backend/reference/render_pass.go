package reference

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/hydra/hd"
)

// passBackend gathers the draw items of a pass on Prepare and counts the
// ones it would draw on Execute.
type passBackend struct {
	param *RenderParam
	log   *slog.Logger

	mu    sync.Mutex
	items []*hd.DrawItem
}

func (b *passBackend) SyncPass(context.Context, *hd.RenderPass) error { return nil }

// Prepare collects the draw items of the collection's prims whose render
// tag is drawn and whose material tag matches the collection's.
func (b *passBackend) Prepare(ctx context.Context, pass *hd.RenderPass, renderTags []string) error {
	index := pass.Index()
	col := pass.Collection()
	sel := col.ReprSelector()
	var items []*hd.DrawItem
	for _, id := range index.RprimIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !col.Contains(id) {
			continue
		}
		prim, ok := index.Rprim(id)
		if !ok {
			continue
		}
		if len(renderTags) > 0 && !slices.Contains(renderTags, prim.RenderTag()) {
			continue
		}
		repr := hd.ReprFor(prim, sel)
		if repr == "" {
			continue
		}
		for _, item := range prim.DrawItems(repr) {
			if tag := col.MaterialTag(); tag != "" && item.MaterialTag != tag {
				continue
			}
			items = append(items, item)
		}
	}
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()
	return nil
}

// Execute counts the visible draw items with a live index range.
func (b *passBackend) Execute(ctx context.Context, pass *hd.RenderPass, _ *hd.RenderPassState, _ []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	items := b.items
	b.mu.Unlock()
	n := 0
	for _, item := range items {
		if !item.Visible() || item.IndexRange == nil || !item.IndexRange.IsValid() {
			continue
		}
		n++
	}
	b.param.draws.Add(int64(n))
	b.log.Debug("reference: pass executed", "collection", pass.Collection().Name(), "draws", n)
	return nil
}
