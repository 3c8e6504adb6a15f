package resource

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
)

// ErrShutdown is returned when acquiring from a group that has been shut down.
var ErrShutdown = errors.New("resource group is shut down")

// Fixed returns a limit function with a constant value.
func Fixed(n int) func() int {
	return func() int { return n }
}

// Group caps the number of live resources of one kind. A limit of 0 or
// less is unlimited.
type Group struct {
	name   string
	limit  func() int
	full   *neterr.Error
	logger *zap.Logger

	mu      sync.Mutex
	members map[*Resource]struct{}
	active  bool
}

// NewGroup creates an active group. full is returned when the group is at capacity.
func NewGroup(name string, limit func() int, full *neterr.Error, logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit == nil {
		limit = Fixed(0)
	}
	return &Group{
		name:    name,
		limit:   limit,
		full:    full,
		logger:  logger,
		members: make(map[*Resource]struct{}),
		active:  true,
	}
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// TryAcquire creates a live resource, failing immediately when the group is full.
func (g *Group) TryAcquire(parent context.Context) (*Resource, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return nil, ErrShutdown
	}
	if limit := g.limit(); limit > 0 && len(g.members) >= limit {
		return nil, g.full
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Resource{group: g, ctx: ctx, cancel: cancel}
	g.members[r] = struct{}{}
	return r, nil
}

func (g *Group) release(r *Resource) {
	g.mu.Lock()
	delete(g.members, r)
	g.mu.Unlock()
}

// Live returns the number of open resources.
func (g *Group) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Limit returns the current capacity.
func (g *Group) Limit() int {
	return g.limit()
}

// Startup re-enables a group after Shutdown.
func (g *Group) Startup() {
	g.mu.Lock()
	g.active = true
	g.mu.Unlock()
}

// Shutdown closes every live resource and rejects further acquires until Startup.
func (g *Group) Shutdown() {
	g.mu.Lock()
	g.active = false
	members := make([]*Resource, 0, len(g.members))
	for r := range g.members {
		members = append(members, r)
	}
	g.mu.Unlock()

	for _, r := range members {
		r.Close()
	}
	if len(members) > 0 {
		g.logger.Debug("resource group shut down",
			zap.String("group", g.name),
			zap.Int("closed", len(members)),
		)
	}
}
