package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	query := `UPDATE users SET balance = ? WHERE id = ?`

	assert.Equal(t, query, Dialect{Name: "sqlite"}.Rebind(query))
	assert.Equal(t,
		`UPDATE users SET balance = $1 WHERE id = $2`,
		Dialect{Name: "postgres", NumberedParams: true}.Rebind(query))
}
