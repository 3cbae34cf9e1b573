package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/repository"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "ticks.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_AppendAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, action := range []domain.TickAction{domain.TickActionNone, domain.TickActionRestart, domain.TickActionRestartFailed} {
		require.NoError(t, store.Append(ctx, domain.TickReport{
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Action:    action,
		}))
	}

	reports, err := store.List(ctx, repository.TickFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, domain.TickActionRestartFailed, reports[0].Action, "newest first")
	assert.Equal(t, domain.TickActionNone, reports[2].Action)
	assert.NotEmpty(t, reports[0].ID)

	limited, err := store.List(ctx, repository.TickFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	since, err := store.List(ctx, repository.TickFilter{Since: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestStore_Prune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Append(ctx, domain.TickReport{StartedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Append(ctx, domain.TickReport{StartedAt: now.Add(-25 * time.Hour)}))
	require.NoError(t, store.Append(ctx, domain.TickReport{StartedAt: now}))

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStore_Closed(t *testing.T) {
	var store *Store

	assert.Error(t, store.Append(context.Background(), domain.TickReport{}))
	_, err := store.List(context.Background(), repository.TickFilter{})
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
