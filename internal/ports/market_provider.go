package ports

import (
	"context"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// MarketStateProvider obtiene el snapshot de análisis de un símbolo.
type MarketStateProvider interface {
	// FetchState devuelve el MarketState más reciente. El snapshot ya incorpora
	// todos los datos asíncronos (profundidad, activos correlacionados): el
	// scoring posterior no hace I/O.
	FetchState(ctx context.Context, symbol string) (*domain.MarketState, error)
}
