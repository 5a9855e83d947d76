package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Event reports a state transition of one view.
type Event struct {
	View  Name
	State State
}

// Observer receives every applied transition. It must not block.
type Observer func(Event)

// Op is a view operation. It returns the success message and result.
type Op func(ctx context.Context) (message string, result any, err error)

// Controller tracks the mounted view, the theme, and each view's request state.
type Controller struct {
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	current  Name
	theme    Theme
	machines map[Name]*Machine

	wg sync.WaitGroup
}

// NewController creates a controller with every view idle and the light theme.
// observer may be nil.
func NewController(observer Observer, logger *slog.Logger) *Controller {
	machines := make(map[Name]*Machine, len(Views))
	for _, v := range Views {
		machines[v.Name] = NewMachine()
	}
	return &Controller{
		logger:   logger,
		observer: observer,
		theme:    Light,
		machines: machines,
	}
}

func (c *Controller) machine(name Name) (*Machine, error) {
	m, ok := c.machines[name]
	if !ok {
		return nil, fmt.Errorf("unknown view %q", name)
	}
	return m, nil
}

func (c *Controller) notify(name Name, m *Machine) {
	if c.observer != nil {
		c.observer(Event{View: name, State: m.Snapshot()})
	}
}

// Mount makes name the current view. Mounting a different view resets the
// previous one, discarding its pending result. It reports whether the mount
// was fresh (name was not already current).
func (c *Controller) Mount(name Name) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == name {
		return false
	}
	if prev, ok := c.machines[c.current]; ok {
		prev.Reset()
		c.logger.Debug("view unmounted", "view", c.current)
	}
	c.current = name
	return true
}

// Current returns the mounted view.
func (c *Controller) Current() Name {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State returns a view's request state.
func (c *Controller) State(name Name) State {
	m, err := c.machine(name)
	if err != nil {
		return State{Status: Idle}
	}
	return m.Snapshot()
}

// Theme returns the active theme.
func (c *Controller) Theme() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// ToggleTheme switches between light and dark and returns the new theme.
func (c *Controller) ToggleTheme() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = c.theme.Toggle()
	return c.theme
}

// Dismiss clears a view's success or error banner.
func (c *Controller) Dismiss(name Name) error {
	m, err := c.machine(name)
	if err != nil {
		return err
	}
	if m.Dismiss() {
		c.notify(name, m)
	}
	return nil
}

// Run starts op for a view in the background. The operation is detached from
// ctx's cancellation: once started it runs to completion. Run returns
// ErrInFlight if the view is already loading.
func (c *Controller) Run(ctx context.Context, name Name, op Op) error {
	m, err := c.machine(name)
	if err != nil {
		return err
	}
	gen, err := m.Begin()
	if err != nil {
		return err
	}
	c.notify(name, m)

	opCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		message, result, err := c.call(opCtx, op)
		var applied bool
		if err != nil {
			applied = m.Fail(gen, err)
		} else {
			applied = m.Succeed(gen, message, result)
		}

		if !applied {
			c.logger.InfoContext(opCtx, "discarding result of unmounted view", "view", name, "error", err)
			return
		}
		c.notify(name, m)
	}()
	return nil
}

// call runs op, turning a panic into an error so the view never stays loading.
func (c *Controller) call(ctx context.Context, op Op) (message string, result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "view operation panicked", "panic", r)
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return op(ctx)
}

// Wait blocks until every started operation has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
