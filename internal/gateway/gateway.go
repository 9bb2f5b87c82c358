// Package gateway runs remregsd: the links of a configuration, their
// periodic refresh and the HTTP API in front of them.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arloliu/go-remregs/internal/config"
	"github.com/arloliu/go-remregs/internal/httpapi"
	"github.com/arloliu/go-remregs/internal/linkmgr"
	"github.com/arloliu/go-remregs/internal/task"
	"github.com/arloliu/go-remregs/logger"
)

// DefaultListen is the HTTP address used when http.listen is not set.
const DefaultListen = ":8080"

// Gateway owns the links, the tasks and the HTTP server of remregsd.
type Gateway struct {
	cfg    *config.Config
	links  *linkmgr.Manager
	tasks  *task.Manager
	server *http.Server
	ln     net.Listener
	logger logger.Logger
}

// New opens the links of cfg. cfg must have been validated. opts are
// passed to linkmgr.Open.
func New(ctx context.Context, cfg *config.Config, build httpapi.BuildInfo, l logger.Logger, opts ...linkmgr.Option) (*Gateway, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	opts = append([]linkmgr.Option{linkmgr.WithLogger(l)}, opts...)

	links, err := linkmgr.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:    cfg,
		links:  links,
		tasks:  task.NewManager(ctx, l),
		logger: l,
	}

	g.server = &http.Server{
		Handler:           httpapi.New(links, build, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Links returns the link registry.
func (g *Gateway) Links() *linkmgr.Manager {
	return g.links
}

// Addr returns the address the HTTP server listens on, nil before Start.
func (g *Gateway) Addr() net.Addr {
	if g.ln == nil {
		return nil
	}

	return g.ln.Addr()
}

// Start listens and starts the HTTP server and the refresh tasks.
func (g *Gateway) Start() error {
	listen := g.cfg.HTTP.Listen
	if listen == "" {
		listen = DefaultListen
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	g.ln = ln

	err = g.tasks.Start("http", func(context.Context) bool {
		g.logger.Info("gateway: http server started", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: http server stopped", "error", err)
		}

		return false
	})
	if err != nil {
		_ = ln.Close()
		return err
	}

	for _, name := range g.links.Names() {
		entry, err := g.links.Get(name)
		if err != nil {
			return err
		}

		if entry.Config.RefreshInterval <= 0 {
			continue
		}

		err = g.tasks.StartInterval("refresh:"+name, g.refresher(entry), entry.Config.RefreshInterval, true)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Gateway) refresher(entry *linkmgr.Entry) task.Func {
	return func(ctx context.Context) bool {
		values, err := entry.Device.Refresh()
		if err != nil {
			g.logger.Warn("gateway: refresh failed", "link", entry.Name, "error", err)
		} else {
			g.logger.Debug("gateway: refreshed", "link", entry.Name, "registers", len(values))
		}

		return ctx.Err() == nil
	}
}

// Shutdown stops the HTTP server gracefully, then the tasks and the links.
// Closing the links interrupts refreshes waiting for a response.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs []error

	if err := g.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gateway: http shutdown: %w", err))
	}

	g.tasks.Stop()

	if err := g.links.Close(); err != nil {
		errs = append(errs, err)
	}

	g.tasks.Wait()

	g.logger.Info("gateway: stopped")

	return errors.Join(errs...)
}
