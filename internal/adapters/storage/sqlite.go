package storage

// sqlite.go: persistencia de señales y resúmenes de análisis.
//
// Estrategia:
//   - `signals`: UNA fila por señal, indexada por ID. Alta con SaveSignal y
//     parches parciales con UpdateSignal (solo las columnas presentes).
//     Objetivos y log de eventos van como JSON: se leen siempre enteros.
//   - `analyses`: resumen por símbolo y ciclo. Cache en memoria: no se escribe
//     si el sesgo, la mejor estrategia y el score (< 5%) no cambiaron.
//   - Prune automático al arrancar: señales cerradas > 90d, análisis > 30d.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por señal; targets y updates en JSON
CREATE TABLE IF NOT EXISTS signals (
    id            TEXT PRIMARY KEY,
    symbol        TEXT NOT NULL,
    strategy      TEXT NOT NULL,
    direction     TEXT NOT NULL,
    entry         REAL NOT NULL,
    stop_loss     REAL NOT NULL DEFAULT 0,
    targets       TEXT NOT NULL DEFAULT '[]',
    status        TEXT NOT NULL,
    current_price REAL NOT NULL DEFAULT 0,
    pnl           REAL NOT NULL DEFAULT 0,
    outcome       TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL,
    activated_at  TEXT,
    closed_at     TEXT,
    updates       TEXT NOT NULL DEFAULT '[]'
);

-- Resumen por símbolo y ciclo de análisis, solo cuando cambia
CREATE TABLE IF NOT EXISTS analyses (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol           TEXT    NOT NULL,
    analyzed_at      TEXT    NOT NULL,
    price            REAL    NOT NULL DEFAULT 0,
    bias             TEXT    NOT NULL,
    score            REAL    NOT NULL DEFAULT 0,
    confidence       TEXT    NOT NULL DEFAULT '',
    best_strategy    TEXT    NOT NULL DEFAULT '',
    best_direction   TEXT    NOT NULL DEFAULT '',
    best_suitability REAL    NOT NULL DEFAULT 0,
    candidates       INTEGER NOT NULL DEFAULT 0,
    conflict         INTEGER NOT NULL DEFAULT 0,
    reason           TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
CREATE INDEX IF NOT EXISTS idx_signals_closed ON signals(closed_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_sym   ON analyses(symbol, analyzed_at DESC);
`

const (
	retentionSignals  = 90 * 24 * time.Hour // señales cerradas: 90 días
	retentionAnalyses = 30 * 24 * time.Hour // análisis: 30 días
	scoreChangePct    = 0.05                // 5% de cambio en score → reescribir

	// ancho fijo: el orden lexicográfico coincide con el cronológico
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const signalColumns = `id, symbol, strategy, direction, entry, stop_loss, targets, status,
	current_price, pnl, outcome, created_at, activated_at, closed_at, updates`

// cachedAnalysis es el snapshot del último análisis guardado de un símbolo.
type cachedAnalysis struct {
	bias         domain.Bias
	score        float64
	bestStrategy string
}

// SQLiteStorage implementa ports.SignalStore y ports.AnalysisStore usando
// SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[string]cachedAnalysis // symbol → último análisis guardado
	mu    sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[string]cachedAnalysis),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// SaveSignal inserta (o reemplaza) una señal completa.
func (s *SQLiteStorage) SaveSignal(ctx context.Context, sig domain.Signal) error {
	targets, err := json.Marshal(orEmpty(sig.Targets))
	if err != nil {
		return fmt.Errorf("storage.SaveSignal: encode targets: %w", err)
	}
	updates, err := json.Marshal(orEmpty(sig.Updates))
	if err != nil {
		return fmt.Errorf("storage.SaveSignal: encode updates: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (`+signalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			targets       = excluded.targets,
			status        = excluded.status,
			current_price = excluded.current_price,
			pnl           = excluded.pnl,
			outcome       = excluded.outcome,
			activated_at  = excluded.activated_at,
			closed_at     = excluded.closed_at,
			updates       = excluded.updates
	`,
		sig.ID,
		sig.Symbol,
		sig.Strategy,
		string(sig.Direction),
		sig.Entry,
		sig.StopLoss,
		string(targets),
		string(sig.Status),
		sig.CurrentPrice,
		sig.PnL,
		string(sig.Outcome),
		formatTime(sig.CreatedAt),
		formatTimePtr(sig.ActivatedAt),
		formatTimePtr(sig.ClosedAt),
		string(updates),
	); err != nil {
		return fmt.Errorf("storage.SaveSignal: upsert %s: %w", sig.ID, err)
	}
	return nil
}

// UpdateSignal aplica un parche parcial: solo se escriben los campos no nil.
func (s *SQLiteStorage) UpdateSignal(ctx context.Context, id string, patch domain.SignalPatch) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Targets != nil {
		b, err := json.Marshal(patch.Targets)
		if err != nil {
			return fmt.Errorf("storage.UpdateSignal: encode targets: %w", err)
		}
		add("targets", string(b))
	}
	if patch.CurrentPrice != nil {
		add("current_price", *patch.CurrentPrice)
	}
	if patch.PnL != nil {
		add("pnl", *patch.PnL)
	}
	if patch.Outcome != nil {
		add("outcome", string(*patch.Outcome))
	}
	if patch.ActivatedAt != nil {
		add("activated_at", formatTime(*patch.ActivatedAt))
	}
	if patch.ClosedAt != nil {
		add("closed_at", formatTime(*patch.ClosedAt))
	}
	if patch.Updates != nil {
		b, err := json.Marshal(patch.Updates)
		if err != nil {
			return fmt.Errorf("storage.UpdateSignal: encode updates: %w", err)
		}
		add("updates", string(b))
	}
	if len(sets) == 0 {
		return nil // parche vacío
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("storage.UpdateSignal: update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.UpdateSignal: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage.UpdateSignal: %s: %w", id, domain.ErrSignalNotFound)
	}
	return nil
}

// LoadActiveSignals devuelve las señales PENDING y ACTIVE por fecha de alta.
func (s *SQLiteStorage) LoadActiveSignals(ctx context.Context) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+signalColumns+`
		FROM signals
		WHERE status IN (?, ?)
		ORDER BY created_at ASC
	`, string(domain.SignalPending), string(domain.SignalActive))
	if err != nil {
		return nil, fmt.Errorf("storage.LoadActiveSignals: query: %w", err)
	}
	defer rows.Close()

	sigs, err := scanSignals(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadActiveSignals: %w", err)
	}
	return sigs, nil
}

// LoadCompletedSignals devuelve las últimas limit señales completadas, la más
// antigua primero.
func (s *SQLiteStorage) LoadCompletedSignals(ctx context.Context, limit int) ([]domain.Signal, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+signalColumns+`
		FROM signals
		WHERE status = ?
		ORDER BY closed_at DESC
		LIMIT ?
	`, string(domain.SignalCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadCompletedSignals: query: %w", err)
	}
	defer rows.Close()

	sigs, err := scanSignals(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadCompletedSignals: %w", err)
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs, nil
}

// SignalStats agrega todas las señales cerradas en la base de datos.
func (s *SQLiteStorage) SignalStats(ctx context.Context) (domain.SignalStats, error) {
	var st domain.SignalStats
	var wins, losses sql.NullInt64
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
		       SUM(pnl)
		FROM signals WHERE status = ?
	`, string(domain.OutcomeTakeProfit), string(domain.OutcomeStopLoss), string(domain.SignalCompleted),
	).Scan(&st.Completed, &wins, &losses, &total)
	if err != nil {
		return st, fmt.Errorf("storage.SignalStats: completed: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signals WHERE status IN (?, ?)`,
		string(domain.SignalPending), string(domain.SignalActive),
	).Scan(&st.Active); err != nil {
		return st, fmt.Errorf("storage.SignalStats: active: %w", err)
	}

	st.Wins = int(wins.Int64)
	st.Losses = int(losses.Int64)
	st.TotalPnL = total.Float64
	if st.Completed > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Completed)
		st.AvgPnL = st.TotalPnL / float64(st.Completed)
	}
	return st, nil
}

// SaveAnalysis persiste el resumen del informe si cambió respecto al último
// guardado para el símbolo (usando caché en memoria).
func (s *SQLiteStorage) SaveAnalysis(ctx context.Context, report domain.AnalysisReport) error {
	rec := report.Record(time.Now().UTC())
	if !s.analysisChanged(rec) {
		return nil // nada nuevo, la gran mayoría de ciclos terminan aquí
	}

	conflict := 0
	if rec.Conflict {
		conflict = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses
			(symbol, analyzed_at, price, bias, score, confidence, best_strategy,
			 best_direction, best_suitability, candidates, conflict, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Symbol,
		formatTime(rec.At),
		rec.Price,
		string(rec.Bias),
		rec.Score,
		string(rec.Confidence),
		rec.BestStrategy,
		string(rec.BestDirection),
		rec.BestSuitability,
		rec.Candidates,
		conflict,
		rec.Reason,
	); err != nil {
		s.forget(rec.Symbol)
		return fmt.Errorf("storage.SaveAnalysis: insert %s: %w", rec.Symbol, err)
	}
	return nil
}

// AnalysisHistory devuelve los análisis del símbolo en el rango dado, el más
// reciente primero.
func (s *SQLiteStorage) AnalysisHistory(ctx context.Context, symbol string, from, to time.Time) ([]domain.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, analyzed_at, price, bias, score, confidence, best_strategy,
		       best_direction, best_suitability, candidates, conflict, reason
		FROM analyses
		WHERE symbol = ? AND analyzed_at BETWEEN ? AND ?
		ORDER BY analyzed_at DESC, id DESC
	`, symbol, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("storage.AnalysisHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisRecord
	for rows.Next() {
		var rec domain.AnalysisRecord
		var at, bias, confidence, dir string
		var conflict int
		if err := rows.Scan(
			&rec.Symbol,
			&at,
			&rec.Price,
			&bias,
			&rec.Score,
			&confidence,
			&rec.BestStrategy,
			&dir,
			&rec.BestSuitability,
			&rec.Candidates,
			&conflict,
			&rec.Reason,
		); err != nil {
			return nil, fmt.Errorf("storage.AnalysisHistory: scan row: %w", err)
		}
		rec.At, _ = time.Parse(timeLayout, at)
		rec.Bias = domain.Bias(bias)
		rec.Confidence = domain.Confidence(confidence)
		rec.BestDirection = domain.Direction(dir)
		rec.Conflict = conflict == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// analysisChanged decide si hay que escribir y actualiza la caché.
func (s *SQLiteStorage) analysisChanged(rec domain.AnalysisRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.cache[rec.Symbol]; ok {
		unchanged := prev.bias == rec.Bias &&
			prev.bestStrategy == rec.BestStrategy &&
			relChange(prev.score, rec.Score) < scoreChangePct
		if unchanged {
			return false
		}
	}
	s.cache[rec.Symbol] = cachedAnalysis{
		bias:         rec.Bias,
		score:        rec.Score,
		bestStrategy: rec.BestStrategy,
	}
	return true
}

func (s *SQLiteStorage) forget(symbol string) {
	s.mu.Lock()
	delete(s.cache, symbol)
	s.mu.Unlock()
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoffSignals := formatTime(time.Now().UTC().Add(-retentionSignals))
	cutoffAnalyses := formatTime(time.Now().UTC().Add(-retentionAnalyses))
	s.db.ExecContext(ctx, `DELETE FROM signals WHERE status = ? AND closed_at < ?`,
		string(domain.SignalCompleted), cutoffSignals)
	s.db.ExecContext(ctx, `DELETE FROM analyses WHERE analyzed_at < ?`, cutoffAnalyses)
}

// warmCache precarga la caché con el último análisis de cada símbolo, evitando
// escrituras redundantes en el primer ciclo tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.symbol, a.bias, a.score, a.best_strategy
		FROM analyses a
		JOIN (SELECT symbol, MAX(id) AS id FROM analyses GROUP BY symbol) last
		  ON last.id = a.id
	`)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var sym, bias, best string
		var score float64
		if rows.Scan(&sym, &bias, &score, &best) == nil {
			s.cache[sym] = cachedAnalysis{
				bias:         domain.Bias(bias),
				score:        score,
				bestStrategy: best,
			}
		}
	}
}

func scanSignals(rows *sql.Rows) ([]domain.Signal, error) {
	var out []domain.Signal
	for rows.Next() {
		var (
			sig                         domain.Signal
			dir, status, outcome        string
			targets, updates, createdAt string
			activatedAt, closedAt       sql.NullString
		)
		if err := rows.Scan(
			&sig.ID,
			&sig.Symbol,
			&sig.Strategy,
			&dir,
			&sig.Entry,
			&sig.StopLoss,
			&targets,
			&status,
			&sig.CurrentPrice,
			&sig.PnL,
			&outcome,
			&createdAt,
			&activatedAt,
			&closedAt,
			&updates,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(targets), &sig.Targets); err != nil {
			return nil, fmt.Errorf("decode targets of %s: %w", sig.ID, err)
		}
		if err := json.Unmarshal([]byte(updates), &sig.Updates); err != nil {
			return nil, fmt.Errorf("decode updates of %s: %w", sig.ID, err)
		}
		sig.Direction = domain.Direction(dir)
		sig.Status = domain.SignalStatus(status)
		sig.Outcome = domain.Outcome(outcome)
		sig.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		sig.ActivatedAt = parseTimePtr(activatedAt)
		sig.ClosedAt = parseTimePtr(closedAt)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// orEmpty evita persistir "null" para slices vacíos.
func orEmpty[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

// relChange devuelve el cambio relativo entre dos valores (0.0 – ∞).
func relChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 1.0 // forzar escritura si antes era 0
	}
	return math.Abs(new-old) / math.Abs(old)
}
