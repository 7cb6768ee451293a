package repository

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type dedupStore interface {
	IsDelivered(ctx context.Context, key string) (bool, error)
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	MarkDelivered(ctx context.Context, key string) error
}

type DedupStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) dedupStore
	store    dedupStore
	ctx      context.Context
}

func (s *DedupStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.ctx = context.Background()
}

func TestMemoryDedupStore(t *testing.T) {
	suite.Run(t, &DedupStoreSuite{newStore: func(*testing.T) dedupStore {
		return NewMemoryDedupStore()
	}})
}

func TestFileDedupStore(t *testing.T) {
	suite.Run(t, &DedupStoreSuite{newStore: func(t *testing.T) dedupStore {
		store, err := NewFileDedupStore(filepath.Join(t.TempDir(), "dedup.json"))
		require.NoError(t, err)
		return store
	}})
}

func TestRedisDedupStore(t *testing.T) {
	suite.Run(t, &DedupStoreSuite{newStore: func(t *testing.T) dedupStore {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisDedupStore(client, time.Minute)
	}})
}

func (s *DedupStoreSuite) TestDeliveredFlag() {
	delivered, err := s.store.IsDelivered(s.ctx, "a.png")
	s.Require().NoError(err)
	s.False(delivered)

	s.Require().NoError(s.store.MarkDelivered(s.ctx, "a.png"))

	delivered, err = s.store.IsDelivered(s.ctx, "a.png")
	s.Require().NoError(err)
	s.True(delivered)

	other, err := s.store.IsDelivered(s.ctx, "b.png")
	s.Require().NoError(err)
	s.False(other)
}

func (s *DedupStoreSuite) TestClaimIsExclusive() {
	ok, err := s.store.Claim(s.ctx, "a.png", time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Claim(s.ctx, "a.png", time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.Release(s.ctx, "a.png"))

	ok, err = s.store.Claim(s.ctx, "a.png", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *DedupStoreSuite) TestMarkDeliveredDropsClaim() {
	ok, err := s.store.Claim(s.ctx, "a.png", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().NoError(s.store.MarkDelivered(s.ctx, "a.png"))

	ok, err = s.store.Claim(s.ctx, "a.png", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *DedupStoreSuite) TestConcurrentClaimsHaveOneWinner() {
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.Claim(s.ctx, "race.png", time.Minute)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), winners.Load())
}

func TestMemoryClaimExpires(t *testing.T) {
	store := NewMemoryDedupStore()
	now := time.Date(2024, 11, 12, 21, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, err := store.Claim(context.Background(), "a.png", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = store.Claim(context.Background(), "a.png", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisClaimExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisDedupStore(client, time.Minute)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "a.png", 0)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = store.Claim(ctx, "a.png", 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFileDedupStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	ctx := context.Background()

	first, err := NewFileDedupStore(path)
	require.NoError(t, err)
	require.NoError(t, first.MarkDelivered(ctx, "a.png"))

	second, err := NewFileDedupStore(path)
	require.NoError(t, err)
	delivered, err := second.IsDelivered(ctx, "a.png")
	require.NoError(t, err)
	require.True(t, delivered)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"a.png": true}`, string(raw))
}

func TestFileDedupStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileDedupStore(path)
	require.Error(t, err)
}
