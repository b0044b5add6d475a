package trusteddevice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shambasecure/shamba-auth/pkg/device"
	"github.com/shambasecure/shamba-auth/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

func deviceN(n int) device.Info {
	ua := fmt.Sprintf("TestAgent/%d.0", n)
	ip := fmt.Sprintf("203.0.113.%d", n)
	return device.Compute(ua, ip, time.Now())
}

func newFixture(t *testing.T) (*Service, user.Repository, *testClock) {
	t.Helper()
	repo := user.NewInMemRepository()
	clock := newTestClock()
	require.NoError(t, repo.Create(context.Background(), user.User{
		UID:          "uid-1",
		Email:        "amina@example.com",
		IsRegistered: true,
	}))
	return NewService(repo, WithClock(clock.Now)), repo, clock
}

func TestIsTrusted(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownUser", func(t *testing.T) {
		svc, _, _ := newFixture(t)
		assert.False(t, svc.IsTrusted(ctx, "ghost", "abc"))
	})

	t.Run("UnknownFingerprint", func(t *testing.T) {
		svc, _, _ := newFixture(t)
		assert.False(t, svc.IsTrusted(ctx, "uid-1", deviceN(1).Fingerprint))
	})

	t.Run("MatchTouchesLastUsed", func(t *testing.T) {
		svc, repo, clock := newFixture(t)
		info := deviceN(1)
		require.True(t, svc.AddTrustedDevice(ctx, "uid-1", info))
		added := clock.Now()

		clock.Advance(time.Hour)
		assert.True(t, svc.IsTrusted(ctx, "uid-1", info.Fingerprint))

		u, err := repo.Get(ctx, "uid-1")
		require.NoError(t, err)
		require.Len(t, u.TrustedDevices, 1)
		assert.True(t, u.TrustedDevices[0].LastUsedAt.After(added))
	})
}

func TestAddTrustedDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownUser", func(t *testing.T) {
		svc, _, _ := newFixture(t)
		assert.False(t, svc.AddTrustedDevice(ctx, "ghost", deviceN(1)))
	})

	t.Run("ReAddRefreshesWithoutDuplicate", func(t *testing.T) {
		svc, repo, clock := newFixture(t)
		info := deviceN(1)
		require.True(t, svc.AddTrustedDevice(ctx, "uid-1", info))
		clock.Advance(time.Hour)
		require.True(t, svc.AddTrustedDevice(ctx, "uid-1", info))

		u, err := repo.Get(ctx, "uid-1")
		require.NoError(t, err)
		assert.Len(t, u.TrustedDevices, 1)
		assert.Equal(t, clock.Now(), u.TrustedDevices[0].AddedAt)
	})

	t.Run("CapEvictsLeastRecentlyUsed", func(t *testing.T) {
		svc, repo, clock := newFixture(t)

		// Six distinct devices added a minute apart. The first one added
		// has the oldest lastUsedAt and must be evicted.
		var first device.Info
		for i := 1; i <= 6; i++ {
			info := deviceN(i)
			if i == 1 {
				first = info
			}
			require.True(t, svc.AddTrustedDevice(ctx, "uid-1", info))
			clock.Advance(time.Minute)
		}

		u, err := repo.Get(ctx, "uid-1")
		require.NoError(t, err)
		require.Len(t, u.TrustedDevices, MaxTrustedDevices)
		for _, td := range u.TrustedDevices {
			assert.NotEqual(t, first.Fingerprint, td.Fingerprint)
		}
	})

	t.Run("RecentlyUsedSurvivesEviction", func(t *testing.T) {
		svc, repo, clock := newFixture(t)

		first := deviceN(1)
		require.True(t, svc.AddTrustedDevice(ctx, "uid-1", first))
		for i := 2; i <= 5; i++ {
			clock.Advance(time.Minute)
			require.True(t, svc.AddTrustedDevice(ctx, "uid-1", deviceN(i)))
		}

		// A login from the first device refreshes it, so the sixth add
		// evicts the now-oldest second device instead.
		clock.Advance(time.Minute)
		require.True(t, svc.IsTrusted(ctx, "uid-1", first.Fingerprint))
		clock.Advance(time.Minute)
		require.True(t, svc.AddTrustedDevice(ctx, "uid-1", deviceN(6)))

		u, err := repo.Get(ctx, "uid-1")
		require.NoError(t, err)
		fingerprints := make([]string, 0, len(u.TrustedDevices))
		for _, td := range u.TrustedDevices {
			fingerprints = append(fingerprints, td.Fingerprint)
		}
		assert.Contains(t, fingerprints, first.Fingerprint)
		assert.NotContains(t, fingerprints, deviceN(2).Fingerprint)
	})
}

func TestRemoveTrustedDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownUser", func(t *testing.T) {
		svc, _, _ := newFixture(t)
		assert.ErrorIs(t, svc.RemoveTrustedDevice(ctx, "ghost", "abc"), user.ErrUserNotFound)
	})

	t.Run("RemovesOnlyMatching", func(t *testing.T) {
		svc, repo, _ := newFixture(t)
		a, b := deviceN(1), deviceN(2)
		require.True(t, svc.AddTrustedDevice(ctx, "uid-1", a))
		require.True(t, svc.AddTrustedDevice(ctx, "uid-1", b))

		require.NoError(t, svc.RemoveTrustedDevice(ctx, "uid-1", a.Fingerprint))

		u, err := repo.Get(ctx, "uid-1")
		require.NoError(t, err)
		require.Len(t, u.TrustedDevices, 1)
		assert.Equal(t, b.Fingerprint, u.TrustedDevices[0].Fingerprint)
	})

	t.Run("Idempotent", func(t *testing.T) {
		svc, _, _ := newFixture(t)
		assert.NoError(t, svc.RemoveTrustedDevice(ctx, "uid-1", "never-added"))
	})
}

// failingUpdateRepo refuses writes on demand so tests can check what a
// failed Update leaves behind.
type failingUpdateRepo struct {
	*user.InMemRepository
	refuse bool
}

func (r *failingUpdateRepo) Update(ctx context.Context, u user.User) error {
	if r.refuse {
		return errors.New("write refused")
	}
	return r.InMemRepository.Update(ctx, u)
}

// TestFailedWriteLeavesStoredRecordIntact guards against mutating the
// fetched record's slice in place: it aliases the record held by the
// in-memory repository, so an aborted write must not leak partial changes
// into the store.
func TestFailedWriteLeavesStoredRecordIntact(t *testing.T) {
	ctx := context.Background()
	repo := &failingUpdateRepo{InMemRepository: user.NewInMemRepository()}
	clock := newTestClock()
	require.NoError(t, repo.Create(ctx, user.User{
		UID:          "uid-1",
		Email:        "amina@example.com",
		IsRegistered: true,
	}))
	svc := NewService(repo, WithClock(clock.Now))

	a, b := deviceN(1), deviceN(2)
	require.True(t, svc.AddTrustedDevice(ctx, "uid-1", a))
	clock.Advance(time.Minute)
	require.True(t, svc.AddTrustedDevice(ctx, "uid-1", b))

	// Element-by-element copy; comparing two Gets would alias the same
	// backing array and hide in-place corruption.
	u, err := repo.Get(ctx, "uid-1")
	require.NoError(t, err)
	snapshot := append([]user.TrustedDevice(nil), u.TrustedDevices...)

	repo.refuse = true
	clock.Advance(time.Hour)

	assert.True(t, svc.IsTrusted(ctx, "uid-1", a.Fingerprint))
	assert.False(t, svc.AddTrustedDevice(ctx, "uid-1", a))
	assert.Error(t, svc.RemoveTrustedDevice(ctx, "uid-1", b.Fingerprint))

	after, err := repo.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot, after.TrustedDevices)
}

func TestListTrustedDevices(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newFixture(t)

	older := deviceN(1)
	newer := deviceN(2)
	require.True(t, svc.AddTrustedDevice(ctx, "uid-1", older))
	clock.Advance(time.Hour)
	require.True(t, svc.AddTrustedDevice(ctx, "uid-1", newer))

	devices, err := svc.ListTrustedDevices(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, newer.Fingerprint, devices[0].Fingerprint, "most recently used first")

	_, err = svc.ListTrustedDevices(ctx, "ghost")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
