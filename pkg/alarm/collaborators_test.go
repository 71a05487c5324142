package alarm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raidhub.com/pkg/schedule"
	"raidhub.com/pkg/store"
)

func TestLoadStaticResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guilds.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "guild-1", "name": "Static", "channels": [{"id": "chan-1", "name": "raid-alerts"}], "roles": [{"id": "role-1", "name": "Raiders"}]}
	]`), 0o600))

	r, err := LoadStaticResolver(path)
	require.NoError(t, err)

	g, err := r.ResolveGuild(context.Background(), "guild-1")
	require.NoError(t, err)
	require.NotNil(t, g)
	ch, ok := g.Channel("chan-1")
	assert.True(t, ok)
	assert.Equal(t, "raid-alerts", ch.Name)
	_, ok = g.Role("role-2")
	assert.False(t, ok)

	g, err = r.ResolveGuild(context.Background(), "guild-2")
	require.NoError(t, err)
	assert.Nil(t, g)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = LoadStaticResolver(path)
	assert.Error(t, err)

	_, err = LoadStaticResolver(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestOwnerAuthorizer(t *testing.T) {
	repo := store.NewMemoryRepository()
	ctx := context.Background()
	group := &schedule.RaidGroup{Name: "Static", OwnerID: 3}
	require.NoError(t, repo.SaveRaidGroup(ctx, group))

	auth := NewOwnerAuthorizer(repo)
	ok, err := auth.CanEditRaidGroup(ctx, 3, group.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CanViewRaidGroup(ctx, 4, group.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// 不存在的团队视为无权限
	ok, err = auth.CanViewRaidGroup(ctx, 3, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}
