package transaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_CarriesTransaction(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok, "plain context has no transaction")

	tx, err := setupTestDB(t).BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	got, ok := FromContext(WithContext(ctx, tx))
	require.True(t, ok)
	assert.Same(t, tx, got)

	_, ok = FromContext(WithContext(ctx, nil))
	assert.False(t, ok, "a nil transaction is ignored")
}
