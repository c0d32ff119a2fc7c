// internal/accounts/service.go
package accounts

import (
	"context"

	"carmarket/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the interface for user accounts and balances.
type Service interface {
	Register(ctx context.Context, username, email, password string) (*market.User, error)
	Authenticate(ctx context.Context, username, password string) (*market.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*market.User, error)
	// Deposit credits a confirmed top-up from the payment provider.
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*market.User, error)
}
