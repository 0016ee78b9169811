package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/strategy"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	compact bool
	now     func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(compact bool) *Console {
	return &Console{out: os.Stdout, compact: compact, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, compact bool) *Console {
	return &Console{out: w, compact: compact, now: time.Now}
}

// NotifyAnalysis imprime el ranking y la resolución de sesgo de un símbolo.
func (c *Console) NotifyAnalysis(_ context.Context, report domain.AnalysisReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.compact {
		c.printCompact(report)
		return nil
	}

	res := report.Resolution
	fmt.Fprintf(c.out, "\n[%s] %s @ %s  bias:%s score:%.1f conf:%s\n",
		c.stamp(), report.Symbol, price(report.Price), res.Bias, res.Score, res.Confidence)

	if len(report.Ranking.All) == 0 {
		fmt.Fprintln(c.out, "  no strategy passed the suitability filter")
	} else {
		c.printCandidates(report.Ranking.All)
	}
	c.printResolution(res)

	for _, s := range report.Tracked {
		fmt.Fprintf(c.out, "  + tracking %s %s %s entry %s stop %s targets %s\n",
			s.Symbol, s.Direction, s.Strategy, price(s.Entry), price(s.StopLoss), targetsLabel(s.Targets))
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(report domain.AnalysisReport) {
	res := report.Resolution
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s → %s %.0f (%s)",
		c.stamp(), report.Symbol, price(report.Price), res.Bias, res.Score, res.Confidence)

	for i, cand := range report.Ranking.All {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&sb, " | %s %s %.2f", cand.Strategy, cand.Direction, cand.Suitability)
	}
	if len(report.Tracked) > 0 {
		fmt.Fprintf(&sb, " | +%d signals", len(report.Tracked))
	}
	fmt.Fprintln(c.out, sb.String())
}

func (c *Console) printCandidates(cands []domain.Candidate) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Strategy", "Category", "Dir", "Base", "Score", "CT", "Top factors")

	for i, cand := range cands {
		ct := ""
		if cand.IsCounterTrend {
			ct = "!"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			cand.Strategy,
			cand.Category,
			string(cand.Direction),
			fmt.Sprintf("%.2f", cand.Base),
			fmt.Sprintf("%.2f", cand.Suitability),
			ct,
			factorsLabel(cand.Factors, 3),
		)
	}
	table.Render()
}

func (c *Console) printResolution(res domain.Resolution) {
	if res.Dominant == nil {
		fmt.Fprintf(c.out, "  NO EDGE: %s\n", res.Reason)
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Role", "Scenario", "Dir", "Score", "HTF", "Liq", "Struct", "News")
	table.Append(scenarioRow("dominant", *res.Dominant)...)
	for _, alt := range res.Alternatives {
		table.Append(scenarioRow("alternative", alt)...)
	}
	for _, k := range res.Killed {
		table.Append(scenarioRow("killed", k)...)
	}
	table.Render()

	if res.Conflict {
		fmt.Fprintf(c.out, "  conflict resolved by HTF bias (%d suppressed)\n", res.Suppressed)
	}
}

// NotifySignals imprime el dashboard de señales vivas.
func (c *Console) NotifySignals(signals []domain.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.compact {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s] %d active signals", c.stamp(), len(signals))
		for _, s := range signals {
			fmt.Fprintf(&sb, " | %s %s %s %+.2f", s.Symbol, s.Direction, s.Status, s.PnL)
		}
		fmt.Fprintln(c.out, sb.String())
		return
	}

	if len(signals) == 0 {
		fmt.Fprintf(c.out, "[%s] no active signals\n", c.stamp())
		return
	}

	fmt.Fprintf(c.out, "\n[%s] %d active signals\n", c.stamp(), len(signals))
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Strategy", "Dir", "Status", "Entry", "Stop", "Targets", "Price", "PnL", "Age")
	for _, s := range signals {
		table.Append(
			s.Symbol,
			s.Strategy,
			string(s.Direction),
			string(s.Status),
			price(s.Entry),
			price(s.StopLoss),
			targetsLabel(s.Targets),
			price(s.CurrentPrice),
			fmt.Sprintf("%+.2f", s.PnL),
			ageLabel(c.now().Sub(s.CreatedAt)),
		)
	}
	table.Render()
}

// PrintStats imprime el resumen de señales cerradas.
func (c *Console) PrintStats(st domain.SignalStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, "\n=== SIGNAL STATS ===")
	if st.Completed == 0 {
		fmt.Fprintf(c.out, "  Active: %d | no completed signals yet\n\n", st.Active)
		return
	}
	fmt.Fprintf(c.out, "  Active:      %d\n", st.Active)
	fmt.Fprintf(c.out, "  Completed:   %d (%d TP / %d SL)\n", st.Completed, st.Wins, st.Losses)
	fmt.Fprintf(c.out, "  Win rate:    %.1f%%\n", st.WinRate*100)
	fmt.Fprintf(c.out, "  Avg PnL:     %+.4f\n", st.AvgPnL)
	fmt.Fprintf(c.out, "  Total PnL:   %+.4f\n\n", st.TotalPnL)
}

// PrintHistory imprime el histórico de análisis de un símbolo.
func (c *Console) PrintHistory(symbol string, records []domain.AnalysisRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(records) == 0 {
		fmt.Fprintf(c.out, "\n  No analysis history for %s.\n", symbol)
		return
	}

	fmt.Fprintf(c.out, "\n=== %s: last %d analyses ===\n", symbol, len(records))
	table := tablewriter.NewWriter(c.out)
	table.Header("At", "Price", "Bias", "Score", "Conf", "Best", "Dir", "Suit", "Cands")
	for _, r := range records {
		best := r.BestStrategy
		if best == "" {
			best = "-"
		}
		table.Append(
			r.At.Format("01-02 15:04"),
			price(r.Price),
			string(r.Bias),
			fmt.Sprintf("%.1f", r.Score),
			string(r.Confidence),
			best,
			string(r.BestDirection),
			fmt.Sprintf("%.2f", r.BestSuitability),
			fmt.Sprintf("%d", r.Candidates),
		)
	}
	table.Render()
}

// PrintAnnotations imprime los artefactos de gráfico de una estrategia.
func (c *Console) PrintAnnotations(symbol, label string, anns []strategy.Annotation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if label == "" {
		fmt.Fprintf(c.out, "\n  %s: no candidate to annotate\n", symbol)
		return
	}
	fmt.Fprintf(c.out, "\n=== %s: %s ===\n", symbol, label)
	if len(anns) == 0 {
		fmt.Fprintln(c.out, "  no annotations (not enough candles)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Kind", "Label", "Level", "Last")
	for _, a := range anns {
		level, last := "-", "-"
		switch a.Kind {
		case strategy.AnnotationLine:
			level = price(a.Price)
		case strategy.AnnotationZone:
			level = price(a.Low) + " - " + price(a.High)
		case strategy.AnnotationSeries:
			if n := len(a.Values); n > 0 {
				last = price(a.Values[n-1])
			}
		}
		table.Append(string(a.Kind), a.Label, level, last)
	}
	table.Render()
}

// --- helpers ---

func (c *Console) stamp() string {
	return c.now().Format("15:04:05")
}

func scenarioRow(role string, sc domain.ScoredScenario) []any {
	label := sc.Label
	if label == "" {
		label = "-"
	}
	b := sc.Breakdown
	return []any{
		role,
		truncate(label, 28),
		string(sc.Direction),
		fmt.Sprintf("%.1f", sc.Score),
		fmt.Sprintf("%.2f", b.HTFBias),
		fmt.Sprintf("%.2f", b.LiquidityProximity),
		fmt.Sprintf("%.2f", b.StructureAlignment),
		fmt.Sprintf("%.2f", b.NewsRiskPenalty),
	}
}

// factorsLabel muestra los n factores que más se alejan de 1.
func factorsLabel(fs []domain.FactorTrace, n int) string {
	moved := make([]domain.FactorTrace, 0, len(fs))
	for _, f := range fs {
		if f.Factor != 1 {
			moved = append(moved, f)
		}
	}
	if len(moved) == 0 {
		return "-"
	}
	sort.SliceStable(moved, func(i, j int) bool {
		return math.Abs(moved[i].Factor-1) > math.Abs(moved[j].Factor-1)
	})
	if len(moved) > n {
		moved = moved[:n]
	}
	parts := make([]string, len(moved))
	for i, f := range moved {
		parts[i] = fmt.Sprintf("%s×%.2f", f.Rule, f.Factor)
	}
	return strings.Join(parts, " ")
}

func targetsLabel(ts []domain.Target) string {
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		mark := ""
		if t.Reached {
			mark = "✓"
		}
		parts = append(parts, price(t.Price)+mark)
	}
	return strings.Join(parts, " ")
}

func price(p float64) string {
	switch {
	case p == 0:
		return "-"
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.6f", p)
	}
}

func ageLabel(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
