// internal/garage/implementation.go
package garage

import (
	"context"
	"strings"
	"time"

	"carmarket/internal/logging"
	"carmarket/internal/market"
	"carmarket/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxNameLength        = 120
	maxDescriptionLength = 2000
)

// service implements the Service interface.
type service struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewService creates a new garage service instance.
func NewService(st store.Store, logger logrus.FieldLogger, now func() time.Time) Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &service{store: st, log: logger, now: now}
}

// AddCar registers a car for ownerID. It waits in pending until moderated.
func (s *service) AddCar(ctx context.Context, ownerID uuid.UUID, name, description string) (*market.Item, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || len(name) > maxNameLength {
		return nil, market.ErrInvalidInput.WithMessagef("name must be 1 to %d characters", maxNameLength)
	}
	if len(description) > maxDescriptionLength {
		return nil, market.ErrInvalidInput.WithMessagef("description must be at most %d characters", maxDescriptionLength)
	}

	item := &market.Item{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Status:      market.ItemPending,
		CreatedAt:   s.now(),
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Users().Get(ctx, ownerID); err != nil {
			return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("user %s not found", ownerID))
		}
		return tx.Items().Insert(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"item_id": item.ID, "owner_id": ownerID}).Info("car added for moderation")
	return item, nil
}

// Moderate approves or rejects a pending car.
func (s *service) Moderate(ctx context.Context, itemID uuid.UUID, approve bool) (*market.Item, error) {
	var moderated *market.Item
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := getCar(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.Status != market.ItemPending {
			return market.ErrNotModeratable.WithMessagef("item %s is %s, only pending items can be moderated", itemID, item.Status)
		}
		item.Status = market.ItemRejected
		if approve {
			item.Status = market.ItemAvailable
		}
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		moderated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"item_id": itemID, "status": moderated.Status}).Info("car moderated")
	return moderated, nil
}

func (s *service) GetCar(ctx context.Context, id uuid.UUID) (*market.Item, error) {
	var item *market.Item
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		item, err = getCar(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]*market.Item, error) {
	var items []*market.Item
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		owned, err := tx.Items().ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		items = make([]*market.Item, 0, len(owned))
		for _, item := range owned {
			if item.Status != market.ItemDeleted {
				items = append(items, item)
			}
		}
		return nil
	})
	return items, err
}

// DeleteCar removes a car from its owner's garage. Cars that are on offer
// are refused. The row is kept with the deleted status so sale records
// still resolve.
func (s *service) DeleteCar(ctx context.Context, ownerID, itemID uuid.UUID) (*market.Item, error) {
	var deleted *market.Item
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := getCar(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.OwnerID != ownerID {
			return market.ErrNotOwner
		}
		if item.Status == market.ItemOnAuction || item.Status == market.ItemOnSale {
			return market.ErrItemInUse.WithMessagef("item %s is %s", itemID, item.Status)
		}
		if err := store.EnsureNotOffered(ctx, tx, itemID); err != nil {
			return err
		}
		item.Status = market.ItemDeleted
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		deleted = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"item_id": itemID, "owner_id": ownerID}).Info("car deleted")
	return deleted, nil
}

// getCar loads a car, treating deleted ones as missing.
func getCar(ctx context.Context, tx store.Tx, id uuid.UUID) (*market.Item, error) {
	item, err := tx.Items().Get(ctx, id)
	if err == nil && item.Status == market.ItemDeleted {
		err = store.ErrNotFound
	}
	if err != nil {
		return nil, store.NotFoundAs(err, market.ErrItemNotFound.WithMessagef("item %s not found", id))
	}
	return item, nil
}
