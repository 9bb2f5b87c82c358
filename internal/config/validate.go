package config

import (
	"fmt"
	"net"

	"github.com/arloliu/go-remregs/logger"
	"github.com/arloliu/go-remregs/regmap"
	"github.com/arloliu/go-remregs/remregs"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}

	if cfg.HTTP.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Listen); err != nil {
			return fmt.Errorf("config: http.listen %q: %w", cfg.HTTP.Listen, err)
		}
	}

	if len(cfg.Links) == 0 {
		return fmt.Errorf("config: no links defined")
	}

	names := make(map[string]bool, len(cfg.Links))

	for i := range cfg.Links {
		l := &cfg.Links[i]

		if l.Name == "" {
			return fmt.Errorf("config: links[%d]: name is required", i)
		}

		if names[l.Name] {
			return fmt.Errorf("config: duplicate link name %q", l.Name)
		}
		names[l.Name] = true

		if l.Endpoint == "" {
			return fmt.Errorf("config: link %q: endpoint is required", l.Name)
		}

		if l.Baud < 0 {
			return fmt.Errorf("config: link %q: baud must not be negative", l.Name)
		}

		if l.CacheDuration < 0 {
			return fmt.Errorf("config: link %q: cache_duration must not be negative", l.Name)
		}

		if l.RefreshInterval < 0 {
			return fmt.Errorf("config: link %q: refresh_interval must not be negative", l.Name)
		}

		// the link options carry their own range checks
		if _, err := remregs.NewLinkConfig(l.LinkOptions()...); err != nil {
			return fmt.Errorf("config: link %q: %w", l.Name, err)
		}

		if _, err := regmap.NewMap(l.Registers); err != nil {
			return fmt.Errorf("config: link %q: %w", l.Name, err)
		}
	}

	return nil
}

// LinkOptions converts the timing overrides of l into link options.
// Unset fields keep the link defaults.
func (l *LinkConfig) LinkOptions() []remregs.LinkOption {
	var opts []remregs.LinkOption

	if l.ReadPoll != nil {
		opts = append(opts, remregs.WithReadPoll(l.ReadPoll.Interval, l.ReadPoll.Ceiling))
	}

	if l.SyncPoll != nil {
		opts = append(opts, remregs.WithSyncPoll(l.SyncPoll.Interval, l.SyncPoll.Ceiling))
	}

	if l.BufferSize != 0 {
		opts = append(opts, remregs.WithBufferSize(l.BufferSize))
	}

	return opts
}

// Level returns the configured log level. It must be called after Validate.
func (c *Config) Level() logger.LogLevel {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}
