package domain

// Scenario es una hipótesis direccional que compite con otras por la dominancia.
type Scenario struct {
	Direction   Bias     `yaml:"direction"`
	Target      *float64 `yaml:"target"`      // nil = sin objetivo definido
	Probability float64  `yaml:"probability"` // [0,1], opcional
	Label       string   `yaml:"label"`
}

// ScoreBreakdown son los cuatro sub-scores del modelo de ponderación de escenarios.
type ScoreBreakdown struct {
	HTFBias            float64
	LiquidityProximity float64
	StructureAlignment float64
	NewsRiskPenalty    float64
}

// ScoredScenario es un escenario con su score compuesto en [0,100].
type ScoredScenario struct {
	Scenario
	Score     float64
	Breakdown ScoreBreakdown
}

// Confidence es la confianza cualitativa de una resolución de sesgo.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
	ConfidenceNone   Confidence = "NONE"
)

// Resolution es el resultado de reducir un conjunto de escenarios a un sesgo dominante.
type Resolution struct {
	Bias         Bias
	Score        float64
	Confidence   Confidence
	Dominant     *ScoredScenario
	Alternatives []ScoredScenario
	Killed       []ScoredScenario // escenarios por debajo del umbral de viabilidad
	Suppressed   int              // escenarios viables descartados por el desempate HTF
	Conflict     bool
	Reason       string
}

// Analysis es la entrada de ForceDominantBias: un sesgo ya resuelto aguas arriba
// (opcional), el sesgo HTF para desempatar y los escenarios ya puntuados.
type Analysis struct {
	Bias      Bias
	HTFBias   Bias
	Scenarios []ScoredScenario
}
