package main

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIdleTimeout = 24 * time.Hour

// sequence hands out the given codes in order, then repeats the last one.
func sequence(codes ...string) func() string {
	var mu sync.Mutex
	i := 0

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		code := codes[i]
		if i < len(codes)-1 {
			i++
		}

		return code
	}
}

func newTestManager(codes ...string) (*GameManager, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()

	return newGameManager(clock, testIdleTimeout, sequence(codes...)), clock
}

func newTestSession() *Session {
	return NewSession("Alice", &recorder{}, words("cat", "dog", "bird"))
}

func TestCreateRetriesOnCollision(t *testing.T) {
	gm, _ := newTestManager("aaaaa", "aaaaa", "aaaaa", "bbbbb")

	first := gm.create(newTestSession())
	second := gm.create(newTestSession())

	assert.Equal(t, "aaaaa", first.Code())
	assert.Equal(t, "bbbbb", second.Code())
	assert.Equal(t, 2, gm.count())

	hub, ok := gm.lookup("bbbbb")
	require.True(t, ok)
	assert.Same(t, second, hub)
}

func TestAcquireUnknownGame(t *testing.T) {
	gm, _ := newTestManager("aaaaa")

	_, err := gm.acquire("zzzzz")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestIdleGameIsDeleted(t *testing.T) {
	gm, clock := newTestManager("aaaaa")

	var expired []string
	var mu sync.Mutex
	gm.onExpire = func(code string) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, code)
	}

	hub := gm.create(newTestSession())
	require.True(t, gm.release(hub))

	clock.Advance(testIdleTimeout - time.Second)
	_, ok := gm.lookup("aaaaa")
	assert.True(t, ok, "deleted before the timeout")

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return gm.count() == 0 }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"aaaaa"}, expired)

	_, err := gm.acquire("aaaaa")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestConnectCancelsDeletion(t *testing.T) {
	gm, clock := newTestManager("aaaaa")

	hub := gm.create(newTestSession())
	require.True(t, gm.release(hub))

	clock.Advance(testIdleTimeout / 2)

	again, err := gm.acquire("aaaaa")
	require.NoError(t, err)
	assert.Same(t, hub, again)

	clock.Advance(testIdleTimeout)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, gm.count())

	// Leaving again starts a fresh countdown.
	require.True(t, gm.release(hub))
	clock.Advance(testIdleTimeout - time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, gm.count())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return gm.count() == 0 }, time.Second, time.Millisecond)
}

func TestReleaseWithOthersConnected(t *testing.T) {
	gm, clock := newTestManager("aaaaa")

	hub := gm.create(newTestSession())
	_, err := gm.acquire("aaaaa")
	require.NoError(t, err)

	assert.False(t, gm.release(hub))

	clock.Advance(2 * testIdleTimeout)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, gm.count())

	assert.True(t, gm.release(hub))
}

// A timer that fired but lost the race for the registry lock to a joining
// player must not delete the game.
func TestStaleExpiryIsIgnored(t *testing.T) {
	gm, _ := newTestManager("aaaaa")

	hub := gm.create(newTestSession())
	require.True(t, gm.release(hub))

	hub.guard.mu.Lock()
	generation := hub.guard.generation
	hub.guard.mu.Unlock()

	_, err := gm.acquire("aaaaa")
	require.NoError(t, err)

	gm.expire(hub, generation)
	assert.Equal(t, 1, gm.count())

	require.True(t, gm.release(hub))
	gm.expire(hub, generation)
	assert.Equal(t, 1, gm.count(), "an older generation must not match the new timer")
}

func TestConcurrentAcquireRelease(t *testing.T) {
	gm, clock := newTestManager("aaaaa")

	hub := gm.create(newTestSession())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			h, err := gm.acquire("aaaaa")
			if err != nil {
				return
			}
			gm.release(h)
		}()
	}
	wg.Wait()

	// The host is still connected throughout.
	clock.Advance(2 * testIdleTimeout)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, gm.count())

	hub.guard.mu.Lock()
	assert.Equal(t, 1, hub.guard.connections)
	hub.guard.mu.Unlock()
}

func TestCloseStopsTimers(t *testing.T) {
	gm, clock := newTestManager("aaaaa")

	hub := gm.create(newTestSession())
	require.True(t, gm.release(hub))

	gm.close()

	clock.Advance(2 * testIdleTimeout)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, gm.count())
}

func TestCodeGenerator(t *testing.T) {
	gen := codeGenerator(6)

	for range 20 {
		code := gen()
		assert.Len(t, code, 6)
		_, ok := codeFromPath(joinPath(code))
		assert.True(t, ok, code)
	}
}
