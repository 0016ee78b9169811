package domain

// Direction es el sentido de una hipótesis de trade evaluada por una estrategia.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Directions devuelve ambos sentidos en el orden en que se evalúan.
func Directions() []Direction {
	return []Direction{Long, Short}
}

// Opposite devuelve el sentido contrario.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Bias devuelve el sesgo equivalente (LONG → BULLISH, SHORT → BEARISH).
func (d Direction) Bias() Bias {
	if d == Long {
		return Bullish
	}
	return Bearish
}

// Sign devuelve +1 para LONG y -1 para SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Bias es el sesgo direccional de un contexto de mercado o de un escenario.
type Bias string

const (
	Bullish Bias = "BULLISH"
	Bearish Bias = "BEARISH"
	Neutral Bias = "NEUTRAL"
	// NoEdge indica que no hay escenario viable: recomendación retenida a propósito.
	NoEdge Bias = "NO_EDGE"
)

// Direction devuelve el sentido de trade asociado al sesgo.
// ok es false para NEUTRAL, NO_EDGE y valores vacíos.
func (b Bias) Direction() (Direction, bool) {
	switch b {
	case Bullish:
		return Long, true
	case Bearish:
		return Short, true
	}
	return "", false
}

// IsDirectional devuelve true si el sesgo es BULLISH o BEARISH.
func (b Bias) IsDirectional() bool {
	_, ok := b.Direction()
	return ok
}

// Aligns devuelve +1 si el sesgo coincide con d, -1 si se opone y 0 si es neutral o vacío.
func (b Bias) Aligns(d Direction) int {
	dir, ok := b.Direction()
	switch {
	case !ok:
		return 0
	case dir == d:
		return 1
	default:
		return -1
	}
}
