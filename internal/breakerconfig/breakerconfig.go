// Package breakerconfig loads circuitbus's runtime-tunable defaults
// from a YAML file and optionally watches it for changes, grounded
// directly on sneha4175-gateway-pro's internal/config LoadAndWatch:
// same load/validate/watch split, same debounced fsnotify loop, same
// non-blocking update channel.
package breakerconfig

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/1mb-dev/circuitbus/internal/obslog"
)

// Config is the subset of circuitbus behavior SPEC_FULL.md's runtime
// configuration section allows to be tuned from a file: per-circuit
// threshold/ttl overrides keyed by circuit name, plus the defaults For
// returns for any name without an entry of its own.
type Config struct {
	Defaults CircuitDefaults            `yaml:"defaults"`
	Circuits map[string]CircuitDefaults `yaml:"circuits"`
}

// CircuitDefaults mirrors the threshold/ttl pair every Context is
// constructed with.
type CircuitDefaults struct {
	Threshold     int    `yaml:"threshold"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
	RedisURL      string `yaml:"redis_url,omitempty"`
}

// For looks up the override for name, falling back to Defaults when
// name has no entry of its own.
func (c *Config) For(name string) CircuitDefaults {
	if c == nil {
		return CircuitDefaults{}
	}
	if override, ok := c.Circuits[name]; ok {
		return override
	}
	return c.Defaults
}

// TTL converts TTLSeconds to a time.Duration.
func (d CircuitDefaults) TTL() time.Duration {
	return time.Duration(d.TTLSeconds) * time.Second
}

// Watcher emits a new Config each time the watched file changes on
// disk, debounced the same way gateway-pro's Watcher is.
type Watcher struct {
	updates chan *Config
	done    chan struct{}
	once    sync.Once
	fsw     *fsnotify.Watcher
}

// Updates returns the channel new configs arrive on. Reloads that fail
// to read or parse are logged and dropped; nothing is sent for them.
// The channel buffers one Config: a reload that completes while an
// earlier one is still unread is dropped.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Close stops the watcher goroutine and releases the underlying
// fsnotify.Watcher.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
}

// Load reads and validates path without starting a watch.
func Load(path string) (*Config, error) {
	return load(path)
}

// WatchAndReload reads path, starts watching it for writes, and
// returns the initial Config plus a Watcher whose channel delivers
// subsequent successful reloads (see Updates for when one is dropped).
func WatchAndReload(path string, log obslog.Logger) (*Config, *Watcher, error) {
	if log == nil {
		log = obslog.Nop()
	}

	cfg, err := load(path)
	if err != nil {
		return nil, nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		return nil, nil, fmt.Errorf("watch config file: %w", err)
	}

	w := &Watcher{
		updates: make(chan *Config, 1),
		done:    make(chan struct{}),
		fsw:     fsw,
	}

	go func() {
		var debounce <-chan time.Time
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					debounce = time.After(200 * time.Millisecond)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Warnw("circuitbus: fsnotify error", "err", err)
			case <-debounce:
				debounce = nil
				newCfg, err := load(path)
				if err != nil {
					log.Warnw("circuitbus: config reload failed, keeping old config", "err", err)
					continue
				}
				select {
				case w.updates <- newCfg:
				default:
				}
			}
		}
	}()

	return cfg, w, nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read circuitbus config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse circuitbus config: %w", err)
	}

	validate(&cfg)

	return &cfg, nil
}

func validate(cfg *Config) {
	if cfg.Defaults.Threshold <= 0 {
		cfg.Defaults.Threshold = 5
	}
	if cfg.Defaults.TTLSeconds <= 0 {
		cfg.Defaults.TTLSeconds = 30
	}
	for name, d := range cfg.Circuits {
		if d.Threshold <= 0 {
			d.Threshold = cfg.Defaults.Threshold
		}
		if d.TTLSeconds <= 0 {
			d.TTLSeconds = cfg.Defaults.TTLSeconds
		}
		cfg.Circuits[name] = d
	}
}
