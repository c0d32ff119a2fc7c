// internal/market/errors.go
package market

import (
	"errors"
	"fmt"
)

// Kind classifies failures for callers deciding how to react.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidState      Kind = "invalid_state"
	KindValidationFailed  Kind = "validation_failed"
	KindInsufficientFunds Kind = "insufficient_funds"
	// KindStoreFailure means the transaction did not commit. Retrying the
	// whole operation is safe.
	KindStoreFailure Kind = "store_failure"
)

// Error is a coded marketplace failure with a human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessagef returns a copy of e carrying a more specific message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	cloned := *e
	cloned.Message = fmt.Sprintf(format, args...)
	return &cloned
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrAuctionNotFound = newError(KindNotFound, "auction_not_found", "auction not found")
	ErrItemNotFound    = newError(KindNotFound, "item_not_found", "item not found")
	ErrUserNotFound    = newError(KindNotFound, "user_not_found", "user not found")
	ErrListingNotFound = newError(KindNotFound, "listing_not_found", "listing not found")

	ErrNotOwner         = newError(KindPermissionDenied, "not_owner", "you do not own this item")
	ErrSelfBid          = newError(KindPermissionDenied, "self_bid", "you cannot bid on your own auction")
	ErrSelfPurchase     = newError(KindPermissionDenied, "self_purchase", "you cannot buy your own listing")
	ErrBadPassword      = newError(KindPermissionDenied, "invalid_credentials", "invalid credentials")
	ErrNotAccountHolder = newError(KindPermissionDenied, "not_account_holder", "you can only act on your own account")

	ErrItemNotAvailable       = newError(KindInvalidState, "item_not_available", "only available items can be offered")
	ErrDuplicateActiveAuction = newError(KindInvalidState, "duplicate_active_auction", "an active auction already exists for this item")
	ErrItemAlreadyListed      = newError(KindInvalidState, "item_already_listed", "this item is already listed on the marketplace")
	ErrAlreadyLeading         = newError(KindInvalidState, "already_leading", "you are already the highest bidder")
	ErrAuctionFinished        = newError(KindInvalidState, "auction_finished", "auction finished")
	ErrListingNotActive       = newError(KindInvalidState, "listing_not_active", "listing is not active")
	ErrNotModeratable         = newError(KindInvalidState, "not_moderatable", "only pending items can be moderated")
	ErrUsernameTaken          = newError(KindInvalidState, "username_taken", "username or email already registered")
	ErrItemInUse              = newError(KindInvalidState, "item_in_use", "item is offered in an auction or listing")

	ErrBidTooLow     = newError(KindValidationFailed, "bid_too_low", "bid amount too low")
	ErrInvalidAmount = newError(KindValidationFailed, "invalid_amount", "amount must be positive")
	ErrInvalidTerms  = newError(KindValidationFailed, "invalid_terms", "invalid auction terms")
	ErrInvalidInput  = newError(KindValidationFailed, "invalid_input", "invalid input")

	ErrInsufficientBalance = newError(KindInsufficientFunds, "insufficient_balance", "not enough balance")

	ErrStoreFailure = newError(KindStoreFailure, "store_failure", "transaction could not be committed")
)

// StoreFailure wraps a persistence error so it classifies as KindStoreFailure.
func StoreFailure(cause error) error {
	if cause == nil {
		return nil
	}
	var coded *Error
	if errors.As(cause, &coded) {
		return cause
	}
	return &Error{Kind: KindStoreFailure, Code: ErrStoreFailure.Code, Message: ErrStoreFailure.Message, Cause: cause}
}

// KindOf classifies err. Errors that carry no kind come from the store port
// and are reported as KindStoreFailure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Kind
	}
	return KindStoreFailure
}

// Retryable reports whether the whole operation may be retried.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreFailure
}
