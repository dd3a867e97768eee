package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxcache/rxcache/migration"
	"github.com/rxcache/rxcache/persistence"
	"github.com/rxcache/rxcache/record"
	"github.com/rxcache/rxcache/sweep"
	"github.com/rxcache/rxcache/twolayer"
)

type widget struct {
	Value string
}

func newTestPipeline(t *testing.T, useExpiredFallback bool) (*Pipeline, *record.TypeRegistry) {
	t.Helper()
	disk, err := persistence.New(t.TempDir(), nil)
	require.NoError(t, err)
	cache := twolayer.New(disk, 100, nil)
	reg := record.NewTypeRegistry()
	reg.Register(widget{})

	sw := sweep.New(disk, nil)
	mr := migration.New(disk, nil)

	return New(cache, reg, mr, sw, useExpiredFallback, nil), reg
}

func TestMissInvokesLoaderAndSaves(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	called := false

	result, err := p.Do(context.Background(), Descriptor{
		ProviderKey:              "widgets",
		RequiresDetailedResponse: true,
		Loader: func(ctx context.Context) (any, error) {
			called = true
			return widget{Value: "fresh"}, nil
		},
	})
	require.NoError(t, err)
	assert.True(t, called)

	reply, ok := result.(record.Reply)
	require.True(t, ok)
	assert.Equal(t, record.CLOUD, reply.Source)
	assert.Equal(t, widget{Value: "fresh"}, reply.Payload)
}

func TestHitSkipsLoader(t *testing.T) {
	p, _ := newTestPipeline(t, false)

	_, err := p.Do(context.Background(), Descriptor{
		ProviderKey: "widgets",
		Loader: func(ctx context.Context) (any, error) {
			return widget{Value: "first"}, nil
		},
	})
	require.NoError(t, err)

	called := false
	result, err := p.Do(context.Background(), Descriptor{
		ProviderKey: "widgets",
		Loader: func(ctx context.Context) (any, error) {
			called = true
			return widget{Value: "second"}, nil
		},
	})
	require.NoError(t, err)
	assert.False(t, called, "a cache hit with no evict directive must not invoke the loader")
	assert.Equal(t, widget{Value: "first"}, result)
}

func TestEvictDirectiveStillInvokesLoaderOnHit(t *testing.T) {
	p, _ := newTestPipeline(t, false)

	_, err := p.Do(context.Background(), Descriptor{
		ProviderKey: "widgets",
		Loader: func(ctx context.Context) (any, error) {
			return widget{Value: "first"}, nil
		},
	})
	require.NoError(t, err)

	called := false
	result, err := p.Do(context.Background(), Descriptor{
		ProviderKey:    "widgets",
		EvictDirective: EvictProvider,
		Loader: func(ctx context.Context) (any, error) {
			called = true
			return widget{Value: "second"}, nil
		},
	})
	require.NoError(t, err)
	assert.True(t, called, "an evict directive must invoke the loader even on a hit")
	assert.Equal(t, widget{Value: "second"}, result)
}

func TestLoaderFailureWithExpiredFallbackServesOldRecord(t *testing.T) {
	p, _ := newTestPipeline(t, true)

	_, err := p.Do(context.Background(), Descriptor{
		ProviderKey:    "widgets",
		LifetimeMillis: 1,
		Expirable:      true,
		Loader: func(ctx context.Context) (any, error) {
			return widget{Value: "stale"}, nil
		},
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	result, err := p.Do(context.Background(), Descriptor{
		ProviderKey:    "widgets",
		LifetimeMillis: 1,
		Expirable:      true,
		Loader: func(ctx context.Context) (any, error) {
			return nil, errors.New("upstream down")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, widget{Value: "stale"}, result)
}

func TestEvictDirectiveForcesLoaderAndFallsBackToPriorRecordOnFailure(t *testing.T) {
	p, _ := newTestPipeline(t, true)

	_, err := p.Do(context.Background(), Descriptor{
		ProviderKey: "widgets",
		Loader: func(ctx context.Context) (any, error) {
			return widget{Value: "first"}, nil
		},
	})
	require.NoError(t, err)

	// A fresh hit would normally skip the loader, but the evict
	// directive forces it to run; when it fails, the record captured
	// before eviction is still served.
	result, err := p.Do(context.Background(), Descriptor{
		ProviderKey:    "widgets",
		EvictDirective: EvictProvider,
		Loader: func(ctx context.Context) (any, error) {
			return nil, errors.New("upstream down")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, widget{Value: "first"}, result)

	// The directive evicted the provider, so a later miss-only lookup
	// (no fallback loader failure this time) proves the scope is clear.
	_, found, retErr := p.cache.Retrieve("widgets", "", "", false, 0)
	require.NoError(t, retErr)
	assert.False(t, found)
}

func TestLoaderFailureWithoutFallbackReturnsNoDataError(t *testing.T) {
	p, _ := newTestPipeline(t, false)

	_, err := p.Do(context.Background(), Descriptor{
		ProviderKey: "widgets",
		Loader: func(ctx context.Context) (any, error) {
			return nil, errors.New("upstream down")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down", "the loader's own error must be attached, not dropped")
}

func TestStartupErrorLatchesForEverySubsequentCall(t *testing.T) {
	disk, err := persistence.New(t.TempDir(), nil)
	require.NoError(t, err)
	cache := twolayer.New(disk, 100, nil)
	reg := record.NewTypeRegistry()
	reg.Register(widget{})

	boom := errors.New("migration exploded")
	mr := migration.New(disk, nil, migration.Step{Version: 1, Action: failingAction{err: boom}})

	p := New(cache, reg, mr, nil, false, nil)

	_, err1 := p.Do(context.Background(), Descriptor{ProviderKey: "x", Loader: func(ctx context.Context) (any, error) {
		return widget{Value: "x"}, nil
	}})
	assert.Error(t, err1)

	_, err2 := p.Do(context.Background(), Descriptor{ProviderKey: "x", Loader: func(ctx context.Context) (any, error) {
		return widget{Value: "x"}, nil
	}})
	assert.Error(t, err2)
}

type failingAction struct{ err error }

func (f failingAction) Apply(ctx context.Context, disk persistence.Persistence) error {
	return f.err
}
