package ports

import "context"

// PriceProvider es el feed periódico de precios que hace avanzar las señales.
type PriceProvider interface {
	// FetchPrices devuelve el último precio por símbolo. Los símbolos sin
	// precio disponible se omiten del mapa.
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}
