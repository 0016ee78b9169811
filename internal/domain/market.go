package domain

import "time"

// Regime es la clasificación gruesa del estado del mercado.
type Regime string

const (
	RegimeTrending     Regime = "TRENDING"
	RegimeRanging      Regime = "RANGING"
	RegimeTransitional Regime = "TRANSITIONAL"
)

// AssetClass agrupa símbolos con comportamiento similar.
type AssetClass string

const (
	AssetCrypto    AssetClass = "CRYPTO"
	AssetForex     AssetClass = "FOREX"
	AssetEquity    AssetClass = "EQUITY"
	AssetIndex     AssetClass = "INDEX"
	AssetCommodity AssetClass = "COMMODITY"
)

// Strength es la fuerza cualitativa de un pool de liquidez.
type Strength string

const (
	StrengthHigh   Strength = "HIGH"
	StrengthMedium Strength = "MEDIUM"
	StrengthLow    Strength = "LOW"
)

// RiskLevel es el nivel de riesgo por noticias.
type RiskLevel string

const (
	RiskNone   RiskLevel = "NONE"
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Validity indica si el análisis técnico es fiable en este momento
// (p. ej. SUSPENDED durante un halt o un flash crash).
type Validity string

const (
	ValidityValid     Validity = "VALID"
	ValidityDegraded  Validity = "DEGRADED"
	ValiditySuspended Validity = "SUSPENDED"
)

// CyclePhase es la fase de ciclo de mercado (Wyckoff).
type CyclePhase string

const (
	PhaseAccumulation CyclePhase = "ACCUMULATION"
	PhaseMarkup       CyclePhase = "MARKUP"
	PhaseDistribution CyclePhase = "DISTRIBUTION"
	PhaseMarkdown     CyclePhase = "MARKDOWN"
)

// MarketState es el snapshot por símbolo/timeframe que produce el servicio de
// orquestación externo. Es inmutable durante un ciclo de análisis: todo dato
// asíncrono (profundidad, activos correlacionados) ya viene incorporado.
type MarketState struct {
	Symbol     string     `yaml:"symbol"`
	Timeframe  string     `yaml:"timeframe"`
	AssetClass AssetClass `yaml:"asset_class"`
	Price      float64    `yaml:"price"`
	AsOf       time.Time  `yaml:"as_of"`

	Trend           Trend           `yaml:"trend"`
	Regime          Regime          `yaml:"regime"`
	HTFBias         Bias            `yaml:"htf_bias"`
	TimeframeBiases []TimeframeBias `yaml:"timeframe_biases"`

	LiquidityPools  []LiquidityPool  `yaml:"liquidity_pools"`
	Sweeps          []SweepEvent     `yaml:"sweeps"`
	Divergences     []Divergence     `yaml:"divergences"`
	StructureBreaks []StructureBreak `yaml:"structure_breaks"` // orden cronológico, el último es el más reciente
	Gaps            []Gap            `yaml:"gaps"`

	Session      Session      `yaml:"session"`
	Fundamentals Fundamentals `yaml:"fundamentals"`
	Macro        Macro        `yaml:"macro"`
	Volume       VolumeFlow   `yaml:"volume"`

	// RelativeStrength vs benchmark en [-1, 1].
	RelativeStrength float64    `yaml:"relative_strength"`
	Cycle            CyclePhase `yaml:"cycle"`

	Sentiment     Sentiment     `yaml:"sentiment"`
	OnChain       *OnChainFlow  `yaml:"on_chain"`
	OptionsFlow   *OptionsFlow  `yaml:"options_flow"`
	Seasonality   *Seasonality  `yaml:"seasonality"`
	VolumeProfile VolumeProfile `yaml:"volume_profile"`
	Validity      Validity      `yaml:"technical_validity"`
	Indicators    Indicators    `yaml:"indicators"`

	// Performance es el histórico por nombre de estrategia.
	Performance map[string]StrategyPerformance `yaml:"performance"`

	// Scenarios son hipótesis direccionales producidas aguas arriba (opcional).
	Scenarios []Scenario `yaml:"scenarios"`
	// Bias es un sesgo ya resuelto aguas arriba (opcional); si viene, manda.
	Bias Bias `yaml:"bias"`
}

// Trend es la dirección y fuerza [0,1] de la tendencia en el timeframe analizado.
type Trend struct {
	Direction Bias    `yaml:"direction"`
	Strength  float64 `yaml:"strength"`
}

// TimeframeBias es el sesgo de un timeframe concreto (análisis multi-timeframe).
type TimeframeBias struct {
	Timeframe string `yaml:"timeframe"`
	Bias      Bias   `yaml:"bias"`
}

// LiquidityPool es un nivel con concentración de órdenes en reposo.
type LiquidityPool struct {
	Price    float64  `yaml:"price"`
	Strength Strength `yaml:"strength"`
	Side     string   `yaml:"side"` // BUY_SIDE | SELL_SIDE
}

// SweepEvent es una barrida de liquidez. Bias es la dirección implícita tras la
// barrida (barrer mínimos suele ser BULLISH).
type SweepEvent struct {
	Price float64   `yaml:"price"`
	Bias  Bias      `yaml:"bias"`
	At    time.Time `yaml:"at"`
}

// Divergence es una divergencia smart-money (precio vs flujo/oscilador).
type Divergence struct {
	Kind string `yaml:"kind"`
	Bias Bias   `yaml:"bias"`
}

// StructureBreak es una ruptura de estructura (BOS / CHOCH).
type StructureBreak struct {
	Kind  string  `yaml:"kind"`
	Bias  Bias    `yaml:"bias"`
	Price float64 `yaml:"price"`
}

// Gap es un hueco de precio que actúa como imán hasta que se rellena.
type Gap struct {
	Low    float64 `yaml:"low"`
	High   float64 `yaml:"high"`
	Filled bool    `yaml:"filled"`
}

// Mid devuelve el punto medio del gap.
func (g Gap) Mid() float64 {
	return (g.Low + g.High) / 2
}

// Session describe la sesión activa y si estamos en killzone.
type Session struct {
	Name       string `yaml:"name"` // ASIA | LONDON | NEW_YORK | OFF_HOURS
	InKillzone bool   `yaml:"in_killzone"`
}

// Fundamentals agrupa el sesgo de eventos fundamentales y el riesgo de noticias.
type Fundamentals struct {
	EventBias Bias      `yaml:"event_bias"`
	NewsRisk  RiskLevel `yaml:"news_risk"`

	// MinutesToHighImpact es el tiempo hasta la próxima noticia de alto impacto; 0 = ninguna programada.
	MinutesToHighImpact int `yaml:"minutes_to_high_impact"`
}

// Macro es el sesgo derivado de activos correlacionados (DXY, yields, índices).
type Macro struct {
	CorrelationBias Bias    `yaml:"correlation_bias"`
	Strength        float64 `yaml:"strength"`
}

// VolumeFlow resume volumen relativo y el lado del flujo institucional.
type VolumeFlow struct {
	Relative          float64 `yaml:"relative"` // volumen actual / media
	InstitutionalBias Bias    `yaml:"institutional_bias"`
}

// Sentiment es el índice de sentimiento normalizado en [-1, 1] (miedo → codicia).
type Sentiment struct {
	Score float64 `yaml:"score"`
}

// OnChainFlow es el sesgo de flujos on-chain (solo cripto).
type OnChainFlow struct {
	Bias     Bias    `yaml:"bias"`
	Strength float64 `yaml:"strength"`
}

// OptionsFlow es el sesgo del flujo de opciones.
type OptionsFlow struct {
	Bias         Bias    `yaml:"bias"`
	PutCallRatio float64 `yaml:"put_call_ratio"`
}

// Seasonality es el sesgo estacional histórico con su tasa de acierto.
type Seasonality struct {
	Bias    Bias    `yaml:"bias"`
	WinRate float64 `yaml:"win_rate"`
}

// VolumeProfile contiene el point of control y el value area.
type VolumeProfile struct {
	POC float64 `yaml:"poc"`
	VAH float64 `yaml:"vah"`
	VAL float64 `yaml:"val"`
}

// Indicators son primitivas técnicas ya calculadas externamente.
type Indicators struct {
	ATR            float64 `yaml:"atr"`
	RSI            float64 `yaml:"rsi"`
	ADX            float64 `yaml:"adx"`
	EMAFast        float64 `yaml:"ema_fast"`
	EMASlow        float64 `yaml:"ema_slow"`
	DonchianHigh   float64 `yaml:"donchian_high"`
	DonchianLow    float64 `yaml:"donchian_low"`
	BollingerUpper float64 `yaml:"bollinger_upper"`
	BollingerLower float64 `yaml:"bollinger_lower"`
}

// StrategyPerformance es el histórico de resultados de una estrategia.
type StrategyPerformance struct {
	WinRate float64 `yaml:"win_rate"`
	Trades  int     `yaml:"trades"`
}

// RecentBreaks devuelve como mucho las últimas n rupturas de estructura.
func (m *MarketState) RecentBreaks(n int) []StructureBreak {
	if len(m.StructureBreaks) <= n {
		return m.StructureBreaks
	}
	return m.StructureBreaks[len(m.StructureBreaks)-n:]
}

// LatestSweep devuelve la barrida más reciente, si existe.
func (m *MarketState) LatestSweep() (SweepEvent, bool) {
	if len(m.Sweeps) == 0 {
		return SweepEvent{}, false
	}
	return m.Sweeps[len(m.Sweeps)-1], true
}

// Candle es una vela OHLCV usada para generar anotaciones de gráfico.
type Candle struct {
	Time   time.Time `yaml:"time"`
	Open   float64   `yaml:"open"`
	High   float64   `yaml:"high"`
	Low    float64   `yaml:"low"`
	Close  float64   `yaml:"close"`
	Volume float64   `yaml:"volume"`
}
