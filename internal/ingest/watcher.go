package ingest

import (
	"encoding/json"

	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

// NameIngest is the ingest watcher's name.
const NameIngest = "ingest"

// Watcher re-emits records delivered as "record" events. HEAD and
// TERMINATE are left out: the receiving session writes its own.
type Watcher struct {
	*watcher.Base
}

// NewWatcher is the ingest watcher's factory.
func NewWatcher(args watcher.Args) (watcher.Watcher, error) {
	base, err := watcher.NewBase(NameIngest, args)
	if err != nil {
		return nil, err
	}
	w := &Watcher{Base: base}
	w.RegisterEvent(watcher.EventOptions{
		Names:   []string{EventRecord},
		Handler: w.forward,
	})
	return w, nil
}

// Named pairs the factory with its name.
func Named() watcher.Named {
	return watcher.Named{Name: NameIngest, Factory: NewWatcher}
}

func (w *Watcher) forward(ev watcher.Event) {
	var rec ir.Record
	if err := json.Unmarshal(ev.Data, &rec); err != nil {
		w.Logger.Warn("ingest record undecodable", "error", err)
		return
	}
	switch rec.Type {
	case ir.RecordHead, ir.RecordTerminate:
		return
	}

	var opts []watcher.EmitOption
	if rec.Time > 0 {
		opts = append(opts, watcher.At(rec.Time))
	}
	if err := w.EmitData(rec.Type, rec.Data, opts...); err != nil {
		w.Logger.Warn("ingest record not emitted", "type", rec.Type.String(), "error", err)
	}
}
