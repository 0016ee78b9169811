package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// AnalysisStore persiste el resumen de cada ciclo de análisis por símbolo.
type AnalysisStore interface {
	// SaveAnalysis guarda el resumen del informe. Las implementaciones pueden
	// omitir escrituras cuando el resultado no cambió de forma significativa.
	SaveAnalysis(ctx context.Context, report domain.AnalysisReport) error

	// AnalysisHistory devuelve los registros del símbolo en el rango dado,
	// el más reciente primero.
	AnalysisHistory(ctx context.Context, symbol string, from, to time.Time) ([]domain.AnalysisRecord, error)
}
