package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := NewKey("people.csv", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	stored, err := store.Put(ctx, key, strings.NewReader("a,b\n1,2\n"), 8, "text/csv")
	require.NoError(t, err)

	rc, err := store.Open(ctx, stored)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	require.NoError(t, store.Delete(ctx, stored))
	_, err = store.Open(ctx, stored)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NoError(t, store.Delete(ctx, stored))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.csv", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
	_, err = store.Open(context.Background(), "/etc/passwd")
	assert.Error(t, err)
}

func TestNewKeySanitizesName(t *testing.T) {
	key := NewKey(`C:\Users\ops\Q1 leads (final).csv`, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "uploads/2024/05/01/"), key)
	assert.True(t, strings.HasSuffix(key, "-Q1_leads_final_.csv"), key)
}
