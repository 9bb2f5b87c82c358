// Command remregs is an interactive shell for the registers of remregs
// peripherals.
//
//	remregs -c links.yaml                  # interactive shell
//	remregs -c links.yaml -l pump get speed
//	remregs -d /dev/ttyUSB0 -e peek 16 0x11
//	remregs -d sim:// poke 8 0x10 7
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/arloliu/go-remregs/internal/cli"
	"github.com/arloliu/go-remregs/internal/config"
	"github.com/arloliu/go-remregs/internal/linkmgr"
	"github.com/arloliu/go-remregs/logger"
)

var (
	configFile = flag.String("c", "", "configuration `file`")
	linkName   = flag.String("l", "", "select `link` on start")
	endpoint   = flag.String("d", "", "ad-hoc link `endpoint` without a register map: serial device, tcp://host:port or sim://")
	baud       = flag.Int("b", 0, "baud rate of the ad-hoc link")
	evalOnly   = flag.Bool("e", false, "evaluation only, no interactive shell")
	outputJSON = flag.Bool("json", false, "print output in JSON")
	verbose    = flag.Bool("v", false, "verbose logging")
)

func loadConfig() (*config.Config, error) {
	if *endpoint != "" {
		return &config.Config{
			Links: []config.LinkConfig{{Name: "adhoc", Endpoint: *endpoint, Baud: *baud}},
		}, nil
	}

	if *configFile == "" {
		return nil, fmt.Errorf("need a configuration file (-c) or an endpoint (-d)")
	}

	return config.Load(*configFile)
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	level := cfg.Level()
	if level < logger.WarnLevel {
		level = logger.WarnLevel
	}
	if *verbose {
		level = logger.DebugLevel
	}

	// stdout belongs to the shell
	l := logger.NewSlogWriter(os.Stderr, level, false)

	mgr, err := linkmgr.Open(context.Background(), cfg, linkmgr.WithLogger(l))
	if err != nil {
		return err
	}
	defer mgr.Close()

	session := cli.NewSession(mgr)
	session.OutputJSON = *outputJSON

	if *linkName != "" {
		if err := session.Use(*linkName); err != nil {
			return err
		}
	}

	return cli.NewShell(session, !*evalOnly).Run(flag.Args()...)
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "remregs:", err)
		os.Exit(1)
	}
}
