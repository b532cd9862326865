package engine

import (
	"context"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/graph"
)

// Restore loads the persisted concerns for the current object graph.
// Locks are discarded, because no action survives a restart. Concerns
// owned by unknown objects are discarded, unknown related objects are
// dropped. Afterwards all issues are recomputed and the database is
// rewritten with the resulting store.
func (e *Engine) Restore(ctx context.Context) error {
	db := e.settings.Database
	if db == nil {
		return nil
	}
	content, err := db.Load()
	if err != nil {
		return err
	}
	items, err := content.Items()
	if err != nil {
		return err
	}

	all := func(g graph.Reader) []ObjectId {
		return g.Objects()
	}
	return e.run(ctx, "restore", all, func(t *tx) error {
		t.rewrite = make([]string, 0, len(items))
		restored := 0
		for _, i := range items {
			t.rewrite = append(t.rewrite, i.Id)
			if i.Type == concern.TypeLock {
				t.log.Info("discarding stale lock {{concern}}", "concern", i.String())
				continue
			}
			if !t.graph.Exists(i.Owner) {
				t.log.Info("discarding {{concern}} of unknown owner", "concern", i.String())
				continue
			}
			for o := range i.Related {
				if !t.graph.Exists(o) {
					i.Related.Delete(o)
				}
			}
			if _, ok := t.store.Insert(i); ok {
				restored++
			}
		}
		t.log.Info("restored {{restored}} of {{persisted}} concerns", "restored", restored, "persisted", len(items))
		return t.recompute(t.graph.Objects()...)
	})
}
