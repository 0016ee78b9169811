package strategy

import "fmt"

// Registry mantiene las estrategias disponibles indexadas por nombre y agrupadas
// por categoría. No contiene lógica de scoring: solo desacopla al selector del
// conjunto concreto de estrategias.
type Registry struct {
	byName map[string]Module
	order  []Module
}

// NewRegistry crea un registry con las estrategias dadas.
func NewRegistry(modules ...Module) (*Registry, error) {
	r := &Registry{byName: make(map[string]Module, len(modules))}
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register añade una estrategia. Los nombres son únicos.
func (r *Registry) Register(m Module) error {
	name := m.Describe().Name
	if name == "" {
		return fmt.Errorf("strategy.Register: empty name")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("strategy.Register: duplicate strategy %q", name)
	}
	r.byName[name] = m
	r.order = append(r.order, m)
	return nil
}

// All devuelve todas las estrategias en orden de registro.
func (r *Registry) All() []Module {
	return append([]Module(nil), r.order...)
}

// ByCategory devuelve las estrategias de una categoría, en orden de registro.
func (r *Registry) ByCategory(c Category) []Module {
	var out []Module
	for _, m := range r.order {
		if m.Describe().Category == c {
			out = append(out, m)
		}
	}
	return out
}

// Get devuelve la estrategia por nombre.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Categories devuelve las categorías presentes, en orden de primera aparición.
func (r *Registry) Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, m := range r.order {
		c := m.Describe().Category
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Len devuelve el número de estrategias registradas.
func (r *Registry) Len() int {
	return len(r.order)
}

// Default devuelve el catálogo estándar.
func Default() *Registry {
	r, err := NewRegistry(
		NewTrendContinuation(),
		NewMeanReversion(),
		NewDonchianBreakout(),
		NewLiquiditySweep(),
	)
	if err != nil {
		panic(err) // nombres fijos, no puede fallar
	}
	return r
}
