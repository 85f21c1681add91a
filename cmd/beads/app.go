package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentflow/beads/internal/api"
	"github.com/agentflow/beads/internal/config"
	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/project"
	"github.com/agentflow/beads/internal/query"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/summary"
	"github.com/agentflow/beads/internal/templates"
	"encoding/json"
)

// app bundles every layer a command needs once a project has been
// resolved and opened: store, registry, engine, query service, summary
// generator, and a thin API surface over them.
type app struct {
	beadsDir string
	store    *store.Store
	registry *templates.Registry
	engine   *engine.Engine
	query    *query.Service
	summary  *summary.Generator
	surface  *api.Surface
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// openApp resolves the project directory, opens its store and registry,
// and wires the engine/query/summary layers on top, per spec §4.4/§4.6.
func openApp(ctx context.Context) (*app, error) {
	beadsDir := dbPathOverride
	if beadsDir == "" {
		beadsDir = project.Find()
	}
	if beadsDir == "" {
		return nil, fmt.Errorf("no %s directory found; run '%s init' first or set BEADS_DIR", project.DirName, binName)
	}

	cfg, err := readProjectConfig(beadsDir)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, project.DatabasePath(beadsDir), cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	reg := templates.New(beadsDir)
	reg.Load()

	eng := engine.New(st, reg)
	q := query.New(st, reg)
	sum := summary.New(eng, reg, beadsDir)
	eng.SetAfterMutationHook(func() {
		go func() {
			_ = sum.Regenerate(context.Background())
		}()
	})

	return &app{
		beadsDir: beadsDir,
		store:    st,
		registry: reg,
		engine:   eng,
		query:    q,
		summary:  sum,
		surface:  api.New(eng, q, reg),
	}, nil
}

type minimalProjectConfig struct {
	Prefix string `json:"prefix"`
}

func readProjectConfig(beadsDir string) (minimalProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(beadsDir, "config.json")) // #nosec G304 - project-local config
	if os.IsNotExist(err) {
		return minimalProjectConfig{}, fmt.Errorf("no config.json in %s; run '%s init' first", beadsDir, binName)
	}
	if err != nil {
		return minimalProjectConfig{}, fmt.Errorf("reading config.json: %w", err)
	}
	var cfg minimalProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return minimalProjectConfig{}, fmt.Errorf("parsing config.json: %w", err)
	}
	return cfg, nil
}

func resolveActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	if a := config.GetString("actor"); a != "" {
		return a
	}
	if a := os.Getenv("BEADS_ACTOR"); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
