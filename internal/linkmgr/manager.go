// Package linkmgr opens the links described by a configuration and keeps
// them in a registry shared by the command-line tools.
package linkmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-remregs/hostport"
	"github.com/arloliu/go-remregs/internal/config"
	"github.com/arloliu/go-remregs/logger"
	"github.com/arloliu/go-remregs/regmap"
	"github.com/arloliu/go-remregs/remregs"
	"github.com/arloliu/go-remregs/sim"
)

// SimScheme selects an in-process simulated peripheral instead of a real
// device, e.g. `endpoint: sim://`.
const SimScheme = "sim://"

var ErrUnknownLink = errors.New("linkmgr: unknown link")

// DialFunc opens the byte stream of a link.
type DialFunc func(lc *config.LinkConfig) (io.ReadWriteCloser, error)

// Entry is one open link.
type Entry struct {
	Name   string
	Config *config.LinkConfig
	Port   *hostport.Port
	Device *regmap.Device

	// Sim is the simulated peripheral of a sim:// link, nil otherwise.
	Sim *sim.Device
}

// Link returns the protocol link of the entry.
func (e *Entry) Link() *remregs.Link {
	return e.Device.Link()
}

// Manager is a registry of open links.
type Manager struct {
	links  *xsync.MapOf[string, *Entry]
	order  []string
	dial   DialFunc
	logger logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the default dialer, hostport.Dial.
func WithDialer(fn DialFunc) Option {
	return func(m *Manager) {
		if fn != nil {
			m.dial = fn
		}
	}
}

// WithLogger sets the logger of the manager and of every link it opens.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func defaultDial(lc *config.LinkConfig) (io.ReadWriteCloser, error) {
	return hostport.Dial(lc.Endpoint, lc.Baud)
}

// Open opens every link of cfg. cfg must have been validated. On error the
// links opened so far are closed.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		links:  xsync.NewMapOf[string, *Entry](),
		dial:   defaultDial,
		logger: logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	for i := range cfg.Links {
		lc := &cfg.Links[i]

		entry, err := m.open(ctx, lc)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("linkmgr: open %s: %w", lc.Name, err)
		}

		m.links.Store(lc.Name, entry)
		m.order = append(m.order, lc.Name)

		m.logger.Info("linkmgr: link opened", "link", lc.Name, "endpoint", lc.Endpoint)
	}

	return m, nil
}

func (m *Manager) open(ctx context.Context, lc *config.LinkConfig) (*Entry, error) {
	regs, err := regmap.NewMap(lc.Registers)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Name: lc.Name, Config: lc}
	linkLogger := m.logger.With("link", lc.Name)

	var rwc io.ReadWriteCloser
	if strings.HasPrefix(lc.Endpoint, SimScheme) {
		entry.Sim, rwc = startSim(regs, linkLogger)
	} else if rwc, err = m.dial(lc); err != nil {
		return nil, err
	}

	port, err := hostport.New(rwc, hostport.WithLogger(linkLogger))
	if err != nil {
		_ = rwc.Close()
		return nil, err
	}

	opts := append(lc.LinkOptions(), remregs.WithLogger(linkLogger))

	linkCfg, err := remregs.NewLinkConfig(opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	link, err := remregs.NewLink(port, linkCfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	if err := port.Start(ctx, link); err != nil {
		_ = port.Close()
		return nil, err
	}

	dev, err := regmap.NewDevice(lc.Name, link, regs, regmap.WithCacheDuration(lc.CacheDuration))
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	entry.Port = port
	entry.Device = dev

	return entry, nil
}

// startSim serves a simulated peripheral holding every register of regs,
// zero-filled, over an in-memory pipe.
func startSim(regs *regmap.Map, l logger.Logger) (*sim.Device, io.ReadWriteCloser) {
	dev := sim.NewDevice()
	dev.SetLogger(l)

	for _, r := range regs.Registers() {
		var size int
		switch r.Width {
		case regmap.Width8:
			size = 1
		case regmap.Width16:
			size = 2
		case regmap.Width32:
			size = 4
		}
		dev.Define(r.Address, make([]byte, size), r.ReadOnly)
	}

	host, periph := net.Pipe()
	go func() {
		if err := dev.Serve(periph); err != nil {
			l.Error("linkmgr: simulated device stopped", "error", err)
		}
		_ = periph.Close()
	}()

	return dev, host
}

// Get returns the link called name.
func (m *Manager) Get(name string) (*Entry, error) {
	e, ok := m.links.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLink, name)
	}

	return e, nil
}

// Default returns the first configured link.
func (m *Manager) Default() (*Entry, error) {
	if len(m.order) == 0 {
		return nil, ErrUnknownLink
	}

	return m.Get(m.order[0])
}

// Names returns the link names in configuration order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)

	return names
}

// Len returns the number of open links.
func (m *Manager) Len() int {
	return m.links.Size()
}

// Close closes every link and waits for their receive goroutines.
func (m *Manager) Close() error {
	var errs []error

	m.links.Range(func(name string, e *Entry) bool {
		if err := e.Port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		e.Port.Wait()
		m.links.Delete(name)

		return true
	})

	m.order = nil

	return errors.Join(errs...)
}
