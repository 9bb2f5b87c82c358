// Command remregsd serves the registers of remregs peripherals over HTTP.
//
//	remregsd -c links.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-remregs/internal/config"
	"github.com/arloliu/go-remregs/internal/gateway"
	"github.com/arloliu/go-remregs/internal/httpapi"
	"github.com/arloliu/go-remregs/logger"
)

var (
	configFile = flag.String("c", "remregs.yaml", "configuration `file`")
	listen     = flag.String("s", "", "override http.listen, e.g. `:8080`")
	verbose    = flag.Bool("v", false, "verbose logging")
	consoleLog = flag.Bool("console", false, "human readable logs instead of JSON")
)

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var (
	buildVersion = "unspecified"
	buildDate    = "unknown"
)

const shutdownTimeout = 10 * time.Second

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	level := cfg.Level()
	if *verbose {
		level = logger.DebugLevel
	}
	logger.SetLogger(logger.NewSlogWithOptions(logger.SlogOptions{Level: level, Console: *consoleLog}))
	l := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	g, err := gateway.New(context.Background(), cfg, httpapi.BuildInfo{Version: buildVersion, BuildDate: buildDate}, l)
	if err != nil {
		return err
	}

	if err := g.Start(); err != nil {
		_ = g.Shutdown(context.Background())
		return err
	}

	l.Info("remregsd: started", "version", buildVersion, "links", g.Links().Names())

	<-ctx.Done()
	l.Info("remregsd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return g.Shutdown(shutdownCtx)
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "remregsd:", err)
		os.Exit(1)
	}
}
