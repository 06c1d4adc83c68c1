package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

// ErrNotFound is returned by a Vault for unknown keys.
var ErrNotFound = errors.New("credential not found")

// Vault is the secure credential store.
type Vault interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

const vaultPrefix = "secure:"

// KVVault keeps credentials in a key-value store under a reserved prefix.
type KVVault struct {
	store kv.Store
}

func NewKVVault(store kv.Store) *KVVault {
	return &KVVault{store: store}
}

func (v *KVVault) Get(ctx context.Context, key string) (string, error) {
	val, err := v.store.Get(ctx, vaultPrefix+key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrNotFound
	}
	return val, err
}

func (v *KVVault) Set(ctx context.Context, key, value string) error {
	return v.store.Set(ctx, vaultPrefix+key, value)
}

// Deriver turns a master secret into one hashed credential per tier.
type Deriver struct {
	master []byte
	salt   []byte
}

func NewDeriver(master, salt string) *Deriver {
	return &Deriver{master: []byte(master), salt: []byte(salt)}
}

func (d *Deriver) Derive(tier quiz.Tier) (string, error) {
	if len(d.master) == 0 {
		return "", errors.New("credential master secret not configured")
	}
	r := hkdf.New(sha256.New, d.master, d.salt, []byte("thinkb-tier:"+string(tier)))
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", fmt.Errorf("derive %s credential: %w", tier, err)
	}
	return hex.EncodeToString(out), nil
}

func vaultKey(tier quiz.Tier) string {
	return "hashed-api-key-" + string(tier)
}

// Resolver hands providers the credential for a tier, provisioning it into
// the vault on first use.
type Resolver struct {
	vault   Vault
	deriver *Deriver
}

func NewResolver(vault Vault, deriver *Deriver) *Resolver {
	return &Resolver{vault: vault, deriver: deriver}
}

// Provision derives and stores the credential for tier.
func (r *Resolver) Provision(ctx context.Context, tier quiz.Tier) (string, error) {
	cred, err := r.deriver.Derive(tier)
	if err != nil {
		return "", err
	}
	if err := r.vault.Set(ctx, vaultKey(tier), cred); err != nil {
		return "", fmt.Errorf("store %s credential: %w", tier, err)
	}
	return cred, nil
}

func (r *Resolver) Resolve(ctx context.Context, tier quiz.Tier) (string, error) {
	if tier == "" {
		tier = quiz.TierNormal
	}
	cred, err := r.vault.Get(ctx, vaultKey(tier))
	switch {
	case err == nil && cred != "":
		return cred, nil
	case err == nil, errors.Is(err, ErrNotFound):
		return r.Provision(ctx, tier)
	default:
		return "", fmt.Errorf("read %s credential: %w", tier, err)
	}
}
