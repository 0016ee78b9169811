package ports

import (
	"context"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// SignalStore persiste señales, indexadas por ID.
type SignalStore interface {
	// LoadActiveSignals devuelve las señales PENDING y ACTIVE.
	LoadActiveSignals(ctx context.Context) ([]domain.Signal, error)

	// LoadCompletedSignals devuelve como mucho limit señales completadas,
	// en orden de cierre (la más antigua primero).
	LoadCompletedSignals(ctx context.Context, limit int) ([]domain.Signal, error)

	SaveSignal(ctx context.Context, s domain.Signal) error

	// UpdateSignal aplica un parche parcial. Devuelve domain.ErrSignalNotFound
	// si el ID no existe.
	UpdateSignal(ctx context.Context, id string, patch domain.SignalPatch) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
