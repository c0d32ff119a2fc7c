package market

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	specific := ErrBidTooLow.WithMessagef("bid must be at least %s", "110")

	assert.ErrorIs(t, specific, ErrBidTooLow)
	assert.NotErrorIs(t, specific, ErrInvalidAmount)
	assert.Equal(t, "bid must be at least 110", specific.Error())
	assert.Equal(t, "bid amount too low", ErrBidTooLow.Error(), "WithMessagef must not mutate the sentinel")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("load: %w", ErrAuctionNotFound)))
	assert.Equal(t, KindInsufficientFunds, KindOf(ErrInsufficientBalance))
	assert.Equal(t, KindStoreFailure, KindOf(errors.New("connection refused")))
}

func TestStoreFailure(t *testing.T) {
	assert.NoError(t, StoreFailure(nil))

	cause := errors.New("disk full")
	err := StoreFailure(cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.True(t, Retryable(err))
	assert.Contains(t, err.Error(), "disk full")

	coded := fmt.Errorf("place bid: %w", ErrSelfBid)
	assert.Same(t, coded, StoreFailure(coded))
	assert.False(t, Retryable(coded))
}
