package seed

import (
	"context"
	"strings"
	"testing"

	"padron/internal/store"
	"padron/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSeeder(storage store.Storage) *Seeder {
	return New(storage, zap.NewNop().Sugar(), "admin123")
}

func TestRunPopulatesEmptyDatabase(t *testing.T) {
	storage := storetest.New()
	s := newTestSeeder(storage)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))

	roleCount, err := storage.Roles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), roleCount)

	// 15 seed users plus the admin account.
	userCount, err := storage.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16), userCount)
}

func TestRunPrefixesRoleKeys(t *testing.T) {
	storage := storetest.New()
	s := newTestSeeder(storage)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))

	page, err := storage.Roles.List(ctx, store.PageQuery{All: true})
	require.NoError(t, err)
	require.NotEmpty(t, page.Content)
	for _, role := range page.Content {
		assert.True(t, strings.HasPrefix(role.Key, "ROLE_"), "key %q should carry the ROLE_ prefix", role.Key)
		assert.Equal(t, strings.ToUpper(role.Key), role.Key)
	}
}

func TestRunCreatesEnabledAdmin(t *testing.T) {
	storage := storetest.New()
	s := newTestSeeder(storage)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))

	admin, err := storage.Users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.Enabled)
	assert.NoError(t, admin.ComparePassword("admin123"))

	roles, err := storage.Roles.GetByIDs(ctx, admin.Roles)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "ROLE_ADMIN", roles[0].Key)
}

func TestRunIsIdempotent(t *testing.T) {
	storage := storetest.New()
	s := newTestSeeder(storage)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))
	require.NoError(t, s.Run(ctx))

	roleCount, err := storage.Roles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), roleCount)

	userCount, err := storage.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16), userCount)
}

func TestPrefixMigrationIsTaskGated(t *testing.T) {
	storage := storetest.New()
	ctx := context.Background()

	// Simulate an earlier deployment that already ran the migration.
	require.NoError(t, storage.InitTasks.MarkExecuted(ctx, &store.InitializationTask{Key: taskFixRolePrefixes}))
	require.NoError(t, storage.Roles.Create(ctx, &store.Role{Key: "legacy", Name: "Legacy"}))

	s := newTestSeeder(storage)
	require.NoError(t, s.fixRolePrefixes(ctx))

	page, err := storage.Roles.List(ctx, store.PageQuery{All: true})
	require.NoError(t, err)
	for _, role := range page.Content {
		if role.Name == "Legacy" {
			assert.Equal(t, "legacy", role.Key, "gated migration must not touch keys")
		}
	}
}

func TestIncompleteUsersAreDisabled(t *testing.T) {
	storage := storetest.New()
	ctx := context.Background()

	require.NoError(t, storage.Users.Create(ctx, &store.User{FirstName: "Ada", Enabled: true}))

	s := newTestSeeder(storage)
	require.NoError(t, s.fixIncompleteUsers(ctx))

	page, err := storage.Users.List(ctx, store.PageQuery{All: true})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)

	user, err := storage.Users.GetByID(ctx, page.Content[0].ID)
	require.NoError(t, err)
	assert.False(t, user.Enabled)

	// A second run is gated by the recorded task.
	done, err := storage.InitTasks.Exists(ctx, taskFixIncompleteUsers)
	require.NoError(t, err)
	assert.True(t, done)
}
