// internal/store/sqlstore/items.go
package sqlstore

import (
	"context"
	"fmt"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

type items struct{ t *Tx }

const itemColumns = `id, owner_id, name, description, status, created_at`

func scanItem(row rowScanner) (*market.Item, error) {
	var i market.Item
	var createdAt int64
	if err := row.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Description, &i.Status, &createdAt); err != nil {
		return nil, notFound(err)
	}
	i.CreatedAt = fromMillis(createdAt)
	return &i, nil
}

func (r items) Get(ctx context.Context, id uuid.UUID) (*market.Item, error) {
	row := r.t.queryRow(ctx, r.t.forUpdate(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id)
	i, err := scanItem(row)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return i, nil
}

func (r items) Insert(ctx context.Context, i *market.Item) error {
	err := r.t.insert(ctx, nil, `
		INSERT INTO items (id, owner_id, name, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.OwnerID, i.Name, i.Description, i.Status, toMillis(i.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r items) Update(ctx context.Context, i *market.Item) error {
	err := r.t.updateOne(ctx, `
		UPDATE items
		SET owner_id = ?, name = ?, description = ?, status = ?
		WHERE id = ?`,
		i.OwnerID, i.Name, i.Description, i.Status, i.ID)
	if err != nil {
		return fmt.Errorf("update item %s: %w", i.ID, err)
	}
	return nil
}

func (r items) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*market.Item, error) {
	rows, err := r.t.query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE owner_id = ?
		ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list items of %s: %w", ownerID, err)
	}
	defer rows.Close()

	var out []*market.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}
