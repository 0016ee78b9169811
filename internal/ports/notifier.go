package ports

import (
	"context"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// Notifier presenta los resultados del análisis al usuario.
type Notifier interface {
	// NotifyAnalysis muestra el ranking de candidatos y la resolución de sesgo
	// de un símbolo. En la implementación de consola, imprime tablas formateadas.
	NotifyAnalysis(ctx context.Context, report domain.AnalysisReport) error

	// NotifySignals recibe el snapshot de señales vivas tras cada cambio.
	NotifySignals(signals []domain.Signal)
}
