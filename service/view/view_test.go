package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(observer Observer) *Controller {
	return NewController(observer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestByPath(t *testing.T) {
	v, ok := ByPath("/mint-token")
	require.True(t, ok)
	assert.Equal(t, Mint, v.Name)

	v, ok = ByPath("/")
	require.True(t, ok)
	assert.Equal(t, Connect, v.Name)

	_, ok = ByPath("/nowhere")
	assert.False(t, ok)
	assert.Len(t, Views, 5)
}

func TestThemeToggle(t *testing.T) {
	c := newTestController(nil)
	assert.Equal(t, Light, c.Theme())
	assert.Equal(t, Dark, c.ToggleTheme())
	assert.Equal(t, Light, c.ToggleTheme())
}

func TestMachine_Transitions(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Idle, m.Snapshot().Status)

	gen, err := m.Begin()
	require.NoError(t, err)
	assert.Equal(t, Loading, m.Snapshot().Status)

	_, err = m.Begin()
	assert.ErrorIs(t, err, ErrInFlight, "duplicate submission rejected while loading")

	assert.False(t, m.Dismiss(), "loading cannot be dismissed")
	require.True(t, m.Succeed(gen, "done", 42))
	s := m.Snapshot()
	assert.Equal(t, Success, s.Status)
	assert.Equal(t, "done", s.Message)
	assert.Equal(t, 42, s.Result)

	require.True(t, m.Dismiss())
	assert.Equal(t, Idle, m.Snapshot().Status)

	gen, err = m.Begin()
	require.NoError(t, err)
	require.True(t, m.Fail(gen, errors.New("boom")))
	s = m.Snapshot()
	assert.Equal(t, Failed, s.Status)
	assert.EqualError(t, s.Err, "boom")
	assert.Equal(t, 42, s.Result, "previous result kept on failure")

	// a new request may start from error
	_, err = m.Begin()
	assert.NoError(t, err)
}

func TestMachine_StaleGeneration(t *testing.T) {
	m := NewMachine()
	gen, err := m.Begin()
	require.NoError(t, err)

	m.Reset()
	assert.False(t, m.Succeed(gen, "late", nil))
	assert.False(t, m.Fail(gen, errors.New("late")))
	assert.Equal(t, Idle, m.Snapshot().Status)
}

func TestController_Run(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	c := newTestController(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	c.Mount(Create)

	require.NoError(t, c.Run(context.Background(), Create, func(ctx context.Context) (string, any, error) {
		return "created", "mint-address", nil
	}))
	c.Wait()

	s := c.State(Create)
	assert.Equal(t, Success, s.Status)
	assert.Equal(t, "mint-address", s.Result)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, Loading, events[0].State.Status)
	assert.Equal(t, Success, events[1].State.Status)
}

func TestController_RunDetachedFromRequest(t *testing.T) {
	c := newTestController(nil)
	c.Mount(Send)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	require.NoError(t, c.Run(ctx, Send, func(ctx context.Context) (string, any, error) {
		<-release
		return "sent", nil, ctx.Err()
	}))
	cancel()
	close(release)
	c.Wait()

	assert.Equal(t, Success, c.State(Send).Status)
}

func TestController_DuplicateRunRejected(t *testing.T) {
	c := newTestController(nil)
	c.Mount(Mint)

	release := make(chan struct{})
	require.NoError(t, c.Run(context.Background(), Mint, func(ctx context.Context) (string, any, error) {
		<-release
		return "ok", nil, nil
	}))

	err := c.Run(context.Background(), Mint, func(ctx context.Context) (string, any, error) {
		t.Fatal("second operation must not run")
		return "", nil, nil
	})
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	c.Wait()
}

func TestController_UnmountDiscardsLateResult(t *testing.T) {
	c := newTestController(nil)
	assert.True(t, c.Mount(Mint))

	release := make(chan struct{})
	require.NoError(t, c.Run(context.Background(), Mint, func(ctx context.Context) (string, any, error) {
		<-release
		return "minted", "late", nil
	}))

	assert.True(t, c.Mount(History))
	assert.False(t, c.Mount(History), "remount of the current view is not fresh")
	close(release)
	c.Wait()

	s := c.State(Mint)
	assert.Equal(t, Idle, s.Status)
	assert.Nil(t, s.Result)
}

func TestController_PanicBecomesError(t *testing.T) {
	c := newTestController(nil)
	require.NoError(t, c.Run(context.Background(), History, func(ctx context.Context) (string, any, error) {
		panic("bad")
	}))
	c.Wait()

	s := c.State(History)
	assert.Equal(t, Failed, s.Status)
	assert.ErrorContains(t, s.Err, "bad")
}

func TestController_DismissAndUnknownView(t *testing.T) {
	c := newTestController(nil)
	require.NoError(t, c.Run(context.Background(), Connect, func(ctx context.Context) (string, any, error) {
		return "", nil, errors.New("rejected")
	}))
	c.Wait()
	require.Equal(t, Failed, c.State(Connect).Status)

	require.NoError(t, c.Dismiss(Connect))
	assert.Equal(t, Idle, c.State(Connect).Status)

	assert.Error(t, c.Dismiss("settings"))
	assert.Error(t, c.Run(context.Background(), "settings", nil))
}
