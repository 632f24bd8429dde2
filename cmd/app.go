package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/RCFilm/AiRC-LLM/blobstore"
	"github.com/RCFilm/AiRC-LLM/blobstore/minio"
	"github.com/RCFilm/AiRC-LLM/config"
	"github.com/RCFilm/AiRC-LLM/memory"
	"github.com/RCFilm/AiRC-LLM/workspace"
	log "github.com/sirupsen/logrus"
)

// app is the state shared by commands that work on workspaces.
type app struct {
	cfg     *config.Config
	manager *workspace.Manager
	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(parsed)
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	var repo workspace.Repository
	switch cfg.Storage.Repository {
	case "sqlite":
		sqliteRepo, err := workspace.NewSQLiteRepository(filepath.Join(cfg.DataDir, "workspaces.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqliteRepo.Close)
		repo = sqliteRepo
	default:
		repo = workspace.NewJSONFileRepository(filepath.Join(cfg.DataDir, "workspaces.json"))
	}

	var blobs blobstore.Store
	switch cfg.Storage.Blob {
	case "minio":
		if blobs, err = minio.Open(cfg.Storage.Minio); err != nil {
			a.close()
			return nil, err
		}
	default:
		blobs = blobstore.NewLocalStore(filepath.Join(cfg.DataDir, "blobs"))
	}

	compression, err := memory.ParseCompression(cfg.Memory.Compression)
	if err != nil {
		a.close()
		return nil, err
	}
	a.manager, err = workspace.NewManager(workspace.Options{
		Repository:      repo,
		Blobs:           blobs,
		Backends:        cfg.Backends,
		MemoryDimension: cfg.Memory.Dimension,
		MemoryCapacity:  cfg.Memory.Capacity,
		IndexOptions:    cfg.IndexOptions(),
		Compression:     compression,
		HistoryLimit:    cfg.Memory.HistoryLimit,
		TopK:            cfg.Memory.TopK,
		Embedder:        memory.NewHashEmbedder(cfg.Memory.Dimension),
		EmbeddingCache:  cfg.Memory.EmbeddingCache,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.manager.Close(); return nil })
	if err := a.manager.LoadAll(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) save(ctx context.Context) error {
	if err := a.manager.SaveAll(ctx); err != nil {
		return fmt.Errorf("failed to save workspaces: %w", err)
	}
	return nil
}

func (a *app) close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			log.WithError(err).Warn("failed to close")
		}
	}
}

// withApp opens the app, runs fn and saves the workspaces when save is set.
func withApp(ctx context.Context, save bool, fn func(a *app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if err := fn(a); err != nil {
		return err
	}
	if save {
		return a.save(ctx)
	}
	return nil
}
