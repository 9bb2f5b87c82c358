// Package config loads the YAML configuration shared by the remregs
// command-line tools.
//
//	log_level: info
//	http:
//	  listen: ":8080"
//	links:
//	  - name: heater
//	    endpoint: /dev/ttyUSB0
//	    baud: 115200
//	    read_poll: {interval: 10ms, ceiling: 200}
//	    cache_duration: 1s
//	    refresh_interval: 10s
//	    registers:
//	      - {name: status, address: 0x10, width: 8, read_only: true}
//	      - {name: label, address: 0x100, width: mb}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-remregs/regmap"
)

type Config struct {
	LogLevel string       `yaml:"log_level"`
	HTTP     HTTPConfig   `yaml:"http"`
	Links    []LinkConfig `yaml:"links"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// ---- LINK ----

type LinkConfig struct {
	Name string `yaml:"name"`

	// Endpoint is a serial device path, tcp://host:port or sim://.
	Endpoint string `yaml:"endpoint"`
	Baud     int    `yaml:"baud"`

	ReadPoll   *PollConfig `yaml:"read_poll"`
	SyncPoll   *PollConfig `yaml:"sync_poll"`
	BufferSize int         `yaml:"buffer_size"`

	CacheDuration time.Duration `yaml:"cache_duration"`
	// RefreshInterval makes remregsd re-read every register periodically.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	Registers []regmap.Register `yaml:"registers"`
}

// ---- POLL ----

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Ceiling  int           `yaml:"ceiling"`
}

// Load reads and decodes the configuration file at path. Unknown keys are
// rejected. Load does not validate; call Validate.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode decodes a configuration document from r.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config: empty document")
		}

		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Parse decodes a configuration document held in memory.
func Parse(data []byte) (*Config, error) {
	return Decode(bytes.NewReader(data))
}

// Link returns the link called name.
func (c *Config) Link(name string) (*LinkConfig, bool) {
	for i := range c.Links {
		if c.Links[i].Name == name {
			return &c.Links[i], true
		}
	}

	return nil, false
}
