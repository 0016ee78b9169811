package signals

import (
	"context"
	"log/slog"
)

// enqueueLocked encola una escritura sin bloquear. Con la cola llena o el
// Manager cerrado la escritura se descarta: la transición en memoria ya está
// aplicada y no se deshace.
func (m *Manager) enqueueLocked(w write) {
	if m.store == nil {
		return
	}
	if m.closed {
		slog.Warn("signal write after close dropped", "id", w.id)
		m.metrics.RecordPersistError("dropped")
		return
	}
	select {
	case m.writes <- w:
	default:
		slog.Warn("signal persistence queue full, write dropped", "id", w.id, "queue", cap(m.writes))
		m.metrics.RecordPersistError("dropped")
	}
}

// persistLoop es el único escritor contra el store: las escrituras de una misma
// señal se aplican en el orden en que ocurrieron.
func (m *Manager) persistLoop() {
	defer close(m.done)
	for w := range m.writes {
		m.apply(w)
	}
}

func (m *Manager) apply(w write) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	if w.save != nil {
		err = m.store.SaveSignal(ctx, *w.save)
	} else {
		err = m.store.UpdateSignal(ctx, w.id, w.patch)
	}
	if err != nil {
		slog.Warn("signal persistence failed", "id", w.id, "err", err)
		m.metrics.RecordPersistError("write")
	}
}
