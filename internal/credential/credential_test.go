package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

func TestDeriveDistinctPerTier(t *testing.T) {
	d := NewDeriver("master-secret", "thinkb")

	seen := map[string]quiz.Tier{}
	for _, tier := range quiz.Tiers {
		cred, err := d.Derive(tier)
		require.NoError(t, err)
		assert.Len(t, cred, 64)
		_, dup := seen[cred]
		assert.False(t, dup, "tier %s reuses a credential", tier)
		seen[cred] = tier

		again, err := d.Derive(tier)
		require.NoError(t, err)
		assert.Equal(t, cred, again)
	}
}

func TestDeriveRequiresMaster(t *testing.T) {
	_, err := NewDeriver("", "thinkb").Derive(quiz.TierPro)
	assert.Error(t, err)
}

func TestResolverProvisionsLazily(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	resolver := NewResolver(NewKVVault(store), NewDeriver("master-secret", "thinkb"))

	cred, err := resolver.Resolve(ctx, quiz.TierPro)
	require.NoError(t, err)

	stored, err := store.Get(ctx, "secure:hashed-api-key-pro")
	require.NoError(t, err)
	assert.Equal(t, cred, stored)

	again, err := resolver.Resolve(ctx, quiz.TierPro)
	require.NoError(t, err)
	assert.Equal(t, cred, again)
}

func TestResolverPrefersStoredCredential(t *testing.T) {
	ctx := context.Background()
	vault := NewKVVault(kv.NewMemory())
	require.NoError(t, vault.Set(ctx, "hashed-api-key-normal", "issued-by-billing"))
	resolver := NewResolver(vault, NewDeriver("master-secret", "thinkb"))

	cred, err := resolver.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "issued-by-billing", cred)
}

func TestVaultMissingKey(t *testing.T) {
	_, err := NewKVVault(kv.NewMemory()).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
