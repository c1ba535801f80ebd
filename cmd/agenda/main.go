package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"agenda/internal/config"
	"agenda/internal/ics"
	"agenda/internal/kv"
	appLog "agenda/internal/log"
	"agenda/internal/store"
)

const version = "0.1.0"

func main() {
	// Load .env first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		appLog.Error("agenda failed", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "agenda",
		Usage:   "Personal day planner: schedule items, to-dos and categories.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./agenda.yaml",
				EnvVars: []string{"AGENDA_CONFIG"},
				Usage:   "path to the YAML config (created with defaults if missing)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"AGENDA_LOG_LEVEL"},
				Usage:   "debug, info, warn or error (overrides config)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			dayCommand(),
			monthCommand(),
			addCommand(),
			todoCommand(),
			exportCommand(),
			importCommand(),
			captureCommand(),
		},
	}
}

// env is what every command works against: the loaded config and an
// opened, loaded store.
type env struct {
	cfg     *config.Config
	backend kv.Backend
	store   *store.Store
}

// openEnv loads the config, applies the log level and opens the store.
// The caller must call close.
func openEnv(c *cli.Context) (*env, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		appLog.Warn("config could not be written; continuing with defaults", "config_path", path, "err", err)
	}

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	backend, err := kv.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	st := store.New(backend, store.Options{Seed: cfg.Seed})
	if err := st.Load(); err != nil {
		// Already logged by the store; fallbacks are in place.
		appLog.Debug("store load reported problems", "err", err)
	}

	appLog.Debug("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"locale", cfg.Locale,
		"storage", cfg.Storage.Driver,
		"subscriptions", len(cfg.Subscriptions),
	)
	return &env{cfg: cfg, backend: backend, store: st}, nil
}

func (e *env) close() {
	if err := e.backend.Close(); err != nil {
		appLog.Error("close storage failed", err)
	}
}

// sources converts configured subscriptions into ICS sources.
func (e *env) sources() []ics.Source {
	out := make([]ics.Source, 0, len(e.cfg.Subscriptions))
	for _, s := range e.cfg.Subscriptions {
		if s.URL == "" {
			continue
		}
		out = append(out, ics.Source{ID: s.ID, Name: s.Name, URL: s.URL, Category: s.Category})
	}
	return out
}

// importer wires the subscription importer. The feed cache lives in its
// own file backend under cache_dir; without it feeds are cached in memory.
func (e *env) importer() *ics.Importer {
	var cache kv.Backend
	if fb, err := kv.NewFileBackend(e.cfg.CacheDir); err != nil {
		appLog.Warn("feed cache unavailable; caching in memory", "cache_dir", e.cfg.CacheDir, "err", err)
	} else {
		cache = fb
	}
	return &ics.Importer{
		Fetcher:      ics.NewFetcher(cache, nil),
		Store:        e.store,
		Location:     time.Local,
		BackfillDays: e.cfg.BackfillDays,
		HorizonDays:  e.cfg.HorizonDays,
	}
}

// persistWarning turns a persistence failure into a warning: the change is
// in memory but the snapshot write failed.
func persistWarning(err error) error {
	if errors.Is(err, store.ErrPersist) {
		appLog.Warn("change applied but not saved", "err", err)
		return cli.Exit("storage write failed: "+err.Error(), 2)
	}
	return err
}
