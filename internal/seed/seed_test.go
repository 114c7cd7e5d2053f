package seed

import (
	"context"
	"testing"

	"aurabattle/internal/storage"
	"aurabattle/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) (*store.UserStore, *store.GroupStore) {
	t.Helper()
	st, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	users := store.NewUserStore(st)
	groups := store.NewGroupStore(st, users)
	return users, groups
}

func TestDemo(t *testing.T) {
	ctx := context.Background()
	users, groups := newTestStores(t)

	require.NoError(t, Demo(ctx, users, groups))

	all, err := users.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, all, demoUsers)

	// Every seeded group has at least its creator, and the award history
	// produced events for groups with two or more members.
	sawEvents := false
	for _, user := range all {
		mine, err := groups.UserGroups(ctx, user.ID)
		require.NoError(t, err)
		for _, g := range mine {
			assert.NotEmpty(t, g.Members)
			events, err := groups.GroupEvents(ctx, g.ID)
			require.NoError(t, err)
			if len(events) > 0 {
				sawEvents = true
			}
		}
	}
	assert.True(t, sawEvents, "expected seeded award events")
}

func TestDemoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	users, groups := newTestStores(t)

	require.NoError(t, Demo(ctx, users, groups))
	require.NoError(t, Demo(ctx, users, groups))

	all, err := users.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, all, demoUsers)
}
