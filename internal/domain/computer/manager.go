package computer

import (
	"crypto/tls"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/api"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/dialer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/pool"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/resource"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/throttle"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/shared/id"
)

// ErrNotFound is returned for an unknown computer ID.
var ErrNotFound = errors.New("computer not found")

// Computer is one sandboxed machine: an event bridge and the network API
// that queues onto it.
type Computer struct {
	ID        id.ComputerID
	Label     string
	CreatedAt time.Time

	Bridge *event.Bridge
	HTTP   *api.HTTP
}

// Info is the JSON view of a computer.
type Info struct {
	ID        id.ComputerID `json:"id"`
	Label     string        `json:"label"`
	CreatedAt time.Time     `json:"created_at"`
	Resources api.Stats     `json:"resources"`
}

// Info returns a snapshot of the computer.
func (c *Computer) Info() Info {
	return Info{
		ID:        c.ID,
		Label:     c.Label,
		CreatedAt: c.CreatedAt,
		Resources: c.HTTP.Stats(),
	}
}

// Deps are the collaborators shared by every computer. Zero fields are
// built from the network config.
type Deps struct {
	Dialer   *dialer.Dialer
	Pool     *pool.Pool
	Resolver dialer.Resolver
	Dial     dialer.DialFunc
	TLS      *tls.Config
}

// Manager orchestrates computer lifecycle
type Manager struct {
	mu        sync.RWMutex
	computers map[id.ComputerID]*Computer // Protected by mu

	cfg     config.NetworkConfig
	dialer  *dialer.Dialer
	pool    *pool.Pool
	tls     *tls.Config
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewManager creates a manager whose computers share one dialer, throttle
// and worker pool.
func NewManager(cfg config.NetworkConfig, deps Deps, logger *zap.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := deps.Dialer
	if d == nil {
		rs, err := cfg.Rules()
		if err != nil {
			return nil, err
		}

		var proxyCfg *dialer.ProxyConfig
		if cfg.Proxy.Address != "" {
			proxyCfg = &dialer.ProxyConfig{
				Address:  cfg.Proxy.Address,
				Username: cfg.Proxy.Username,
				Password: cfg.Proxy.Password,
			}
		}

		d, err = dialer.New(dialer.Config{
			Rules:       rs,
			Throttle:    throttle.New(cfg.UploadBandwidth, cfg.DownloadBandwidth),
			Resolver:    deps.Resolver,
			Dial:        deps.Dial,
			Proxy:       proxyCfg,
			DialTimeout: cfg.DialTimeout,
			Logger:      logger.Named("dialer"),
		})
		if err != nil {
			return nil, err
		}
	}

	p := deps.Pool
	if p == nil {
		p = pool.New(cfg.Workers, logger.Named("pool"))
	}

	return &Manager{
		computers: make(map[id.ComputerID]*Computer),
		cfg:       cfg,
		dialer:    d,
		pool:      p,
		tls:       deps.TLS,
		logger:    logger,
	}, nil
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	metrics.RegisterResources(m.ResourceCounts)
	return m
}

// Create boots a new computer.
func (m *Manager) Create(label string) (*Computer, error) {
	cid := id.NewComputerID()
	logger := m.logger.With(zap.String("computer_id", cid.String()))

	bridge := event.NewBridge(m.cfg.EventCapacity, logger)
	var onUpload, onDownload throttle.Counter
	if metrics := m.metrics; metrics != nil {
		bridge.WithObserver(func(e event.Event) { metrics.RecordEvent(e.Name) }).
			WithDropObserver(metrics.RecordEventsDropped)
		onUpload = metrics.RecordUpload
		onDownload = metrics.RecordDownload
	}

	cfg := m.cfg
	httpAPI, err := api.New(api.Config{
		Dialer:           m.dialer,
		Pool:             m.pool,
		Bridge:           bridge,
		TLS:              m.tls,
		UserAgent:        cfg.UserAgent,
		MaxRequests:      resource.Fixed(cfg.MaxRequests),
		MaxWebsockets:    resource.Fixed(cfg.MaxWebsockets),
		HTTPEnabled:      func() bool { return cfg.HTTPEnabled },
		WebsocketEnabled: func() bool { return cfg.WebsocketEnabled },
		OnUpload:         onUpload,
		OnDownload:       onDownload,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Computer{
		ID:        cid,
		Label:     label,
		CreatedAt: cid.Created(),
		Bridge:    bridge,
		HTTP:      httpAPI,
	}

	m.mu.Lock()
	m.computers[cid] = c
	count := len(m.computers)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncComputersTotal()
		m.metrics.SetComputersActive(count)
	}
	logger.Info("computer created", zap.String("label", label))
	return c, nil
}

// Get retrieves a computer by ID
func (m *Manager) Get(cid id.ComputerID) (*Computer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.computers[cid]
	return c, ok
}

// List returns all computers, oldest first
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.computers))
	for _, c := range m.computers {
		infos = append(infos, c.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Remove shuts a computer down, closing its resources without queueing
// events, and forgets it.
func (m *Manager) Remove(cid id.ComputerID) bool {
	m.mu.Lock()
	c, ok := m.computers[cid]
	if ok {
		delete(m.computers, cid)
	}
	count := len(m.computers)
	m.mu.Unlock()

	if !ok {
		return false
	}

	c.HTTP.Shutdown()
	c.Bridge.Close()

	if m.metrics != nil {
		m.metrics.SetComputersActive(count)
	}
	m.logger.Info("computer removed", zap.String("computer_id", cid.String()))
	return true
}

// Count returns the number of live computers
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.computers)
}

// ResourceCounts sums live resources per kind across computers.
func (m *Manager) ResourceCounts() []monitoring.ResourceCount {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKind := make(map[string]*monitoring.ResourceCount)
	var order []string
	for _, c := range m.computers {
		for _, g := range c.HTTP.Groups() {
			rc, ok := byKind[g.Name()]
			if !ok {
				rc = &monitoring.ResourceCount{Kind: g.Name(), Limit: g.Limit()}
				byKind[g.Name()] = rc
				order = append(order, g.Name())
			}
			rc.Live += g.Live()
		}
	}

	counts := make([]monitoring.ResourceCount, 0, len(order))
	for _, kind := range order {
		counts = append(counts, *byKind[kind])
	}
	return counts
}

// SetBandwidth changes the shared upload and download limits in bytes per
// second. Zero or less is unlimited.
func (m *Manager) SetBandwidth(upload, download int64) {
	m.dialer.Throttle().SetLimits(upload, download)
}

// Close removes every computer and stops the worker pool.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]id.ComputerID, 0, len(m.computers))
	for cid := range m.computers {
		ids = append(ids, cid)
	}
	m.mu.RUnlock()

	for _, cid := range ids {
		m.Remove(cid)
	}
	m.pool.Close()
}
