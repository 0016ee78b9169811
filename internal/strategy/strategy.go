package strategy

import (
	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// Category agrupa estrategias por concepto de trading.
type Category string

const (
	CategoryTrend         Category = "TREND"
	CategoryMeanReversion Category = "MEAN_REVERSION"
	CategoryBreakout      Category = "BREAKOUT"
	CategorySmartMoney    Category = "SMART_MONEY"
)

// Descriptor identifica una estrategia y el contexto para el que está pensada.
type Descriptor struct {
	Name        string
	Description string
	Category    Category
	// AssetClasses vacío = apta para cualquier clase de activo.
	AssetClasses []domain.AssetClass
	// Reversal marca estrategias que operan contra la tendencia por diseño.
	Reversal bool
}

// Supports devuelve true si la estrategia está pensada para la clase de activo dada.
func (d Descriptor) Supports(class domain.AssetClass) bool {
	if len(d.AssetClasses) == 0 || class == "" {
		return true
	}
	for _, c := range d.AssetClasses {
		if c == class {
			return true
		}
	}
	return false
}

// AnnotationKind es el tipo de artefacto de gráfico.
type AnnotationKind string

const (
	AnnotationLine   AnnotationKind = "LINE"
	AnnotationZone   AnnotationKind = "ZONE"
	AnnotationSeries AnnotationKind = "SERIES"
)

// Annotation es un artefacto para la capa de gráficos (no se renderiza aquí).
type Annotation struct {
	Kind   AnnotationKind
	Label  string
	Price  float64   // LINE
	Low    float64   // ZONE
	High   float64   // ZONE
	Values []float64 // SERIES, alineado con las velas de entrada
}

// EntryLogic describe en texto plano cómo se dispara la entrada.
type EntryLogic struct {
	Trigger    string
	Conditions []string
}

// RiskParameters define stop y objetivos en unidades relativas:
// el stop en múltiplos de ATR y los objetivos en múltiplos de R (riesgo inicial).
type RiskParameters struct {
	StopATR  float64
	StopPct  float64 // fallback si el snapshot no trae ATR
	TargetsR []float64
	MinRR    float64
	MaxRR    float64
}

// Module define el contrato de una estrategia enchufable.
// Evaluate debe ser pura y determinista: con datos insuficientes devuelve un valor
// bajo o 0 en lugar de fallar.
type Module interface {
	// Describe devuelve nombre, descripción y categoría.
	Describe() Descriptor

	// Evaluate devuelve la suitability en [0,1] para el snapshot y el sentido dados.
	Evaluate(state *domain.MarketState, dir domain.Direction) float64

	// GenerateAnnotations produce artefactos de gráfico para la capa de presentación.
	GenerateAnnotations(candles []domain.Candle, state *domain.MarketState, dir domain.Direction) []Annotation

	EntryLogic() EntryLogic
	RiskParameters() RiskParameters
}
