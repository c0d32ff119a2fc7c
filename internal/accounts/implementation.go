// internal/accounts/implementation.go
package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"carmarket/internal/logging"
	"carmarket/internal/market"
	"carmarket/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 32
)

var maxDeposit = decimal.NewFromInt(1_000_000)

// service implements the Service interface.
type service struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewService creates a new accounts service instance.
func NewService(st store.Store, logger logrus.FieldLogger, now func() time.Time) Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &service{store: st, log: logger, now: now}
}

// Register creates a user with a zero balance.
func (s *service) Register(ctx context.Context, username, email, password string) (*market.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || len(username) > maxUsernameLength {
		return nil, market.ErrInvalidInput.WithMessagef("username must be 1 to %d characters", maxUsernameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, market.ErrInvalidInput.WithMessagef("invalid email address %q", email)
	}
	if len(password) < minPasswordLength {
		return nil, market.ErrInvalidInput.WithMessagef("password must be at least %d characters", minPasswordLength)
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &market.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Balance:   decimal.Zero,
		CreatedAt: s.now(),
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Users().Insert(ctx, user); err != nil {
			return err
		}
		return tx.Users().InsertCredential(ctx, &market.Credential{
			UserID:       user.ID,
			PasswordHash: hash,
			Salt:         salt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": username}).Info("user registered")
	return user, nil
}

// Authenticate verifies a user's credentials and returns the user if successful.
func (s *service) Authenticate(ctx context.Context, username, password string) (*market.User, error) {
	var user *market.User
	var cred *market.Credential
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.Users().GetByUsername(ctx, strings.TrimSpace(username))
		if err != nil {
			return store.NotFoundAs(err, market.ErrBadPassword)
		}
		cred, err = tx.Users().GetCredential(ctx, user.ID)
		return store.NotFoundAs(err, market.ErrBadPassword)
	})
	if err != nil {
		return nil, err
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		s.log.WithField("user_id", user.ID).Warn("failed login")
		return nil, market.ErrBadPassword
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*market.User, error) {
	var user *market.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.Users().Get(ctx, id)
		return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("user %s not found", id))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Deposit adds amount to the user's balance.
func (s *service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*market.User, error) {
	if !amount.IsPositive() || amount.GreaterThan(maxDeposit) {
		return nil, market.ErrInvalidAmount.WithMessagef("deposit must be in (0, %s]", maxDeposit)
	}
	if !market.WholeCents(amount) {
		return nil, market.ErrInvalidAmount.WithMessagef("deposit must have at most %d decimal places", market.MoneyScale)
	}

	var user *market.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.Users().Get(ctx, userID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("user %s not found", userID))
		}
		u.Credit(amount)
		if err := tx.Users().UpdateBalance(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount.StringFixed(2),
		"balance": user.Balance.StringFixed(2),
	}).Info("deposit credited")
	return user, nil
}
