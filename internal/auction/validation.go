// internal/auction/validation.go
package auction

import (
	"time"

	"carmarket/internal/market"

	"github.com/shopspring/decimal"
)

// DefaultMinDuration is the shortest auction a seller may open.
const DefaultMinDuration = 5 * time.Minute

var maxAmount = decimal.NewFromInt(1_000_000)

func validateTerms(terms Terms, now time.Time, minDuration time.Duration) error {
	switch {
	case !terms.StartPrice.IsPositive():
		return market.ErrInvalidTerms.WithMessagef("start price must be positive")
	case terms.StartPrice.GreaterThan(maxAmount):
		return market.ErrInvalidTerms.WithMessagef("start price must not exceed %s", maxAmount)
	case !terms.BidStep.IsPositive():
		return market.ErrInvalidTerms.WithMessagef("bid step must be positive")
	case terms.BidStep.GreaterThan(maxAmount):
		return market.ErrInvalidTerms.WithMessagef("bid step must not exceed %s", maxAmount)
	case !market.WholeCents(terms.StartPrice), !market.WholeCents(terms.BidStep):
		return market.ErrInvalidTerms.WithMessagef("amounts must have at most %d decimal places", market.MoneyScale)
	case !terms.BidStep.LessThan(terms.StartPrice):
		return market.ErrInvalidTerms.WithMessagef("bid step must be lower than the start price")
	}

	earliest := now.Add(minDuration)
	if terms.EndsAt.Before(earliest) {
		return market.ErrInvalidTerms.WithMessagef("auction must run until at least %s", earliest.UTC().Format(time.RFC3339))
	}
	return nil
}
