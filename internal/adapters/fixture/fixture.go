// Package fixture implementa los puertos de mercado a partir de un fichero YAML
// con snapshots y caminos de precio. Se usa en modo -dry-run y en tests.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSymbol se devuelve cuando el fichero no tiene snapshot para el símbolo.
var ErrUnknownSymbol = errors.New("unknown symbol")

// File es el formato del fichero de fixtures.
type File struct {
	States []domain.MarketState `yaml:"states"`
	// Prices es el camino de precios por símbolo que recorre FetchPrices.
	Prices  map[string][]float64       `yaml:"prices"`
	Candles map[string][]domain.Candle `yaml:"candles"`
}

// Provider implementa ports.MarketStateProvider y ports.PriceProvider.
type Provider struct {
	mu      sync.Mutex
	states  map[string]domain.MarketState
	paths   map[string][]float64
	pos     map[string]int
	candles map[string][]domain.Candle
}

// Load lee y valida un fichero de fixtures.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture.Load: read %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fixture.Load: parse YAML: %w", err)
	}
	p, err := New(f)
	if err != nil {
		return nil, fmt.Errorf("fixture.Load: %w", err)
	}
	return p, nil
}

// New construye el provider a partir de un File ya decodificado.
func New(f File) (*Provider, error) {
	p := &Provider{
		states:  make(map[string]domain.MarketState, len(f.States)),
		paths:   make(map[string][]float64, len(f.Prices)),
		pos:     make(map[string]int, len(f.Prices)),
		candles: f.Candles,
	}
	for _, st := range f.States {
		if st.Symbol == "" {
			return nil, errors.New("fixture.New: state without symbol")
		}
		if _, dup := p.states[st.Symbol]; dup {
			return nil, fmt.Errorf("fixture.New: duplicate state for %s", st.Symbol)
		}
		p.states[st.Symbol] = st
	}
	for sym, path := range f.Prices {
		if _, ok := p.states[sym]; !ok {
			return nil, fmt.Errorf("fixture.New: prices for %s: %w", sym, ErrUnknownSymbol)
		}
		for i, v := range path {
			if v <= 0 {
				return nil, fmt.Errorf("fixture.New: %s price #%d must be positive, got %v", sym, i, v)
			}
		}
		if len(path) > 0 {
			p.paths[sym] = path
		}
	}
	return p, nil
}

// Symbols devuelve los símbolos con snapshot, ordenados.
func (p *Provider) Symbols() []string {
	out := make([]string, 0, len(p.states))
	for sym := range p.states {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// FetchState devuelve una copia del snapshot con el precio actual del camino.
func (p *Provider) FetchState(ctx context.Context, symbol string) (*domain.MarketState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[symbol]
	if !ok {
		return nil, fmt.Errorf("fixture.FetchState %s: %w", symbol, ErrUnknownSymbol)
	}
	if path, ok := p.paths[symbol]; ok {
		st.Price = path[p.pos[symbol]]
	}
	return &st, nil
}

// FetchPrices avanza un paso en el camino de cada símbolo y devuelve el precio.
// Al final del camino el último precio se repite. Los símbolos sin camino
// devuelven el precio del snapshot; los desconocidos se omiten.
func (p *Provider) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if path, ok := p.paths[sym]; ok {
			if p.pos[sym] < len(path)-1 {
				p.pos[sym]++
			}
			out[sym] = path[p.pos[sym]]
			continue
		}
		if st, ok := p.states[sym]; ok && st.Price > 0 {
			out[sym] = st.Price
		}
	}
	return out, nil
}

// Candles devuelve las velas del símbolo, si el fichero las trae.
func (p *Provider) Candles(symbol string) []domain.Candle {
	return p.candles[symbol]
}
