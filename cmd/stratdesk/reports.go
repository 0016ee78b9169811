package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/adapters/fixture"
	"github.com/alejandrodnm/stratdesk/internal/adapters/notify"
	"github.com/alejandrodnm/stratdesk/internal/adapters/storage"
	"github.com/alejandrodnm/stratdesk/internal/selector"
	"github.com/alejandrodnm/stratdesk/internal/strategy"
)

// runReports imprime estadísticas y/o histórico desde la base de datos.
func runReports(ctx context.Context, store *storage.SQLiteStorage, notifier *notify.Console, stats bool, symbol string) error {
	if stats {
		st, err := store.SignalStats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		notifier.PrintStats(st)
	}
	if symbol != "" {
		symbol = strings.ToUpper(symbol)
		to := time.Now().UTC()
		records, err := store.AnalysisHistory(ctx, symbol, to.Add(-24*time.Hour), to)
		if err != nil {
			return fmt.Errorf("history %s: %w", symbol, err)
		}
		notifier.PrintHistory(symbol, records)
	}
	return nil
}

// runAnnotate selecciona el mejor candidato de cada símbolo y calcula sus
// anotaciones de gráfico sobre las velas del fichero de fixtures.
func runAnnotate(ctx context.Context, market *fixture.Provider, symbols []string, registry *strategy.Registry, sel *selector.Selector, notifier *notify.Console) {
	for _, sym := range symbols {
		state, err := market.FetchState(ctx, sym)
		if err != nil {
			slog.Warn("annotate: fetch state failed", "symbol", sym, "err", err)
			continue
		}
		best, ok := sel.Select(state).Best()
		if !ok {
			notifier.PrintAnnotations(sym, "", nil)
			continue
		}
		m, ok := registry.Get(best.Strategy)
		if !ok {
			continue
		}
		candles := market.Candles(sym)
		if len(candles) == 0 {
			slog.Debug("annotate: no candles in fixtures", "symbol", sym)
		}
		notifier.PrintAnnotations(sym, best.Strategy+" "+string(best.Direction), m.GenerateAnnotations(candles, state, best.Direction))
	}
}
