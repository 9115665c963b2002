package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ssungk/ehttpd/pkg/httpd"
)

// 이벤트 루프 종류
const (
	loopGnet = "gnet"
	loopNet  = "net"
)

var errInvalidLoop = errors.New("loop must be gnet or net")

// fileConfig is the on-disk configuration. Server settings sit at the top
// level next to the process settings.
type fileConfig struct {
	httpd.Config
	Loop        string `json:"loop"`
	MetricsAddr string `json:"metrics_addr"`
	Debug       bool   `json:"debug"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Config:      httpd.DefaultConfig(),
		Loop:        loopGnet,
		MetricsAddr: "127.0.0.1:9090",
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	return cfg, cfg.validate()
}

func (c fileConfig) validate() error {
	if c.Loop != loopGnet && c.Loop != loopNet {
		return fmt.Errorf("%w: %q", errInvalidLoop, c.Loop)
	}
	return c.Config.Validate()
}

// options holds command line flags. Only flags set explicitly override the
// config file.
type options struct {
	configPath string
	set        map[string]string
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("ehttpd", flag.ContinueOnError)
	opts := options{set: make(map[string]string)}

	fs.StringVar(&opts.configPath, "config", "", "path to a JSON config file")
	fs.String("host", httpd.DefaultHost, "listen address (IP literal)")
	fs.Int("port", httpd.DefaultPort, "listen port")
	fs.Int("backlog", httpd.DefaultBacklog, "accept backlog (net loop only)")
	fs.Int("increase-unit", httpd.DefaultBufferIncreaseUnit, "request buffer growth step, 0 grows to fit")
	fs.Int("max-size", httpd.DefaultBufferMaxSize, "request buffer limit in bytes")
	fs.String("loop", loopGnet, "event loop: gnet or net")
	fs.String("metrics", "127.0.0.1:9090", "metrics listen address, empty disables")
	fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			opts.set[f.Name] = f.Value.String()
		}
	})
	return opts, nil
}

// apply overrides cfg with the flags given on the command line.
func (o options) apply(cfg *fileConfig) error {
	for name, value := range o.set {
		var err error
		switch name {
		case "host":
			cfg.Host = value
		case "port":
			cfg.Port, err = strconv.Atoi(value)
		case "backlog":
			cfg.Backlog, err = strconv.Atoi(value)
		case "increase-unit":
			cfg.RequestBufferIncreaseUnit, err = strconv.Atoi(value)
		case "max-size":
			cfg.RequestBufferMaxSize, err = strconv.Atoi(value)
		case "loop":
			cfg.Loop = value
		case "metrics":
			cfg.MetricsAddr = value
		case "debug":
			cfg.Debug, err = strconv.ParseBool(value)
		}
		if err != nil {
			return fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	return cfg.validate()
}
