package app

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"daybook/internal/config"
	"daybook/internal/db"
	"daybook/internal/engine"
	"daybook/internal/migrate"
)

// Options select the workspace and config file. An empty ConfigPath reads
// daybook.yml from the workspace when present.
type Options struct {
	Workspace  string
	ConfigPath string
	Logger     *log.Logger
	Now        func() time.Time
	HTTPClient *http.Client
}

// Workspace is an opened, migrated workspace with its engine.
type Workspace struct {
	Path   string
	DB     *sql.DB
	Config *config.Config
	Engine *engine.Engine
}

// Open prepares the state directory, migrates the database and builds the
// engine. The caller must Close the result.
func Open(opts Options) (*Workspace, error) {
	cfg, err := ResolveConfig(opts.Workspace, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	stateDir, err := db.EnsureWorkspace(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("prepare workspace: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e, err := engine.New(conn, cfg, engine.Options{
		MediaDir:   cfg.MediaDir(stateDir),
		Logger:     opts.Logger,
		Now:        opts.Now,
		HTTPClient: opts.HTTPClient,
		Online:     true,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Workspace{Path: opts.Workspace, DB: conn, Config: cfg, Engine: e}, nil
}

// ResolveConfig prefers an explicit file, then the workspace file, then the
// built-in defaults.
func ResolveConfig(workspace, configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.FromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (w *Workspace) Close() error {
	w.Engine.Close()
	return w.DB.Close()
}
