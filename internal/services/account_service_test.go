package services

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"dex-backend/internal/dto"
	"dex-backend/internal/repository"
	"dex-backend/internal/signing"
	"dex-backend/internal/types"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signAccount(t *testing.T, key *ecdsa.PrivateKey, ts int64) *dto.AccountRequest {
	t.Helper()
	owner := crypto.PubkeyToAddress(key.PublicKey)
	hash := signing.MessageHash(signing.AccountPreimage(owner, uint64(ts)))
	sig, err := signing.Sign(hash, key)
	require.NoError(t, err)
	return &dto.AccountRequest{Address: owner.Hex(), Signature: hexutil.Encode(sig), Timestamp: &ts}
}

func TestCreateAccountAndLogin(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	sessions := NewSessionManager("secret", time.Hour)
	accounts := NewAccountService(store, sessions, 30*time.Second, testLogger())

	key := newKey(t)
	req := signAccount(t, key, time.Now().Unix())

	resp, err := accounts.CreateAccount(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, req.Address, resp.Address)

	claims, err := sessions.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, req.Address, claims.Address)

	again, err := accounts.CreateAccount(ctx, req)
	require.NoError(t, err)
	assert.False(t, again.Created)

	login, err := accounts.Login(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
}

func TestAccountRejections(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(repository.NewMemoryStore(), NewSessionManager("secret", time.Hour), 30*time.Second, testLogger())
	key := newKey(t)

	stale := signAccount(t, key, time.Now().Add(-time.Minute).Unix())
	_, err := accounts.CreateAccount(ctx, stale)
	assert.Equal(t, types.NewFieldError("timestamp", types.ErrUserTimestamp), err)

	// far enough ahead that a seconds-to-Duration product would wrap
	farFuture := signAccount(t, key, time.Now().Unix()+9223372037)
	_, err = accounts.Login(ctx, farFuture)
	assert.Equal(t, types.NewFieldError("timestamp", types.ErrUserTimestamp), err)

	negative := signAccount(t, key, -1)
	_, err = accounts.Login(ctx, negative)
	assert.Equal(t, types.NewFieldError("timestamp", types.ErrUserTimestamp), err)

	forged := signAccount(t, newKey(t), time.Now().Unix())
	forged.Address = signAccount(t, key, 0).Address
	_, err = accounts.Login(ctx, forged)
	assert.True(t, types.IsKind(err, types.ErrSignatureMismatch))

	_, err = accounts.Login(ctx, &dto.AccountRequest{Address: forged.Address, Signature: forged.Signature})
	assert.Equal(t, types.NewFieldError("timestamp", types.ErrMissingField), err)
}

func TestSessionManager(t *testing.T) {
	sessions := NewSessionManager("secret", time.Minute)
	token, expiresAt, err := sessions.Issue(testTaker)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	_, err = NewSessionManager("other", time.Minute).Validate(token)
	assert.Error(t, err)

	sessions.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = sessions.Validate(token)
	assert.Error(t, err, "expired")

	_, _, err = NewSessionManager("", time.Minute).Issue(testTaker)
	assert.Error(t, err)
}
