// internal/garage/service.go
package garage

import (
	"context"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

// Service defines the interface for the garage: the cars users own and the
// moderation queue new cars pass through.
type Service interface {
	AddCar(ctx context.Context, ownerID uuid.UUID, name, description string) (*market.Item, error)
	Moderate(ctx context.Context, itemID uuid.UUID, approve bool) (*market.Item, error)
	GetCar(ctx context.Context, id uuid.UUID) (*market.Item, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]*market.Item, error)
	DeleteCar(ctx context.Context, ownerID, itemID uuid.UUID) (*market.Item, error)
}
