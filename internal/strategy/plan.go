package strategy

import (
	"fmt"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// PlanSetup convierte los parámetros de riesgo relativos de una estrategia en un
// setup concreto (entrada, stop y objetivos) sobre el precio del snapshot.
func PlanSetup(m Module, state *domain.MarketState, dir domain.Direction) (domain.Setup, error) {
	desc := m.Describe()
	if state == nil || state.Price <= 0 {
		return domain.Setup{}, fmt.Errorf("strategy.PlanSetup %s: %w", desc.Name, domain.ErrMissingEntry)
	}

	rp := m.RiskParameters()
	entry := state.Price

	risk := 0.0
	if rp.StopATR > 0 && state.Indicators.ATR > 0 {
		risk = rp.StopATR * state.Indicators.ATR
	} else if rp.StopPct > 0 {
		risk = rp.StopPct * entry
	}
	if risk <= 0 || risk >= entry {
		return domain.Setup{}, fmt.Errorf("strategy.PlanSetup %s: %w: cannot size stop", desc.Name, domain.ErrInvalidSetup)
	}

	sign := dir.Sign()
	targets := make([]float64, 0, len(rp.TargetsR))
	for _, r := range rp.TargetsR {
		if t := entry + sign*r*risk; t > 0 {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return domain.Setup{}, fmt.Errorf("strategy.PlanSetup %s: %w: no reachable targets", desc.Name, domain.ErrInvalidSetup)
	}

	return domain.Setup{
		Strategy:  desc.Name,
		Direction: dir,
		Entry:     entry,
		StopLoss:  entry - sign*risk,
		Targets:   targets,
	}, nil
}
