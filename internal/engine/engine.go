// Package engine implements the backup orchestrator: it owns the
// watcher, scanner, pipeline, and index, runs the initial-pass-then-
// periodic run loop, and exposes the operator-facing operations (restore,
// list, verify) the CLI calls into. Shaped as a long-running Run(ctx)
// loop plus a handful of synchronous public methods other packages call
// directly.
package engine

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/haumaru/internal/config"
	"github.com/cuemby/haumaru/internal/fswatch"
	"github.com/cuemby/haumaru/internal/herror"
	"github.com/cuemby/haumaru/internal/index"
	"github.com/cuemby/haumaru/internal/pipeline"
	"github.com/cuemby/haumaru/internal/store"
)

// Metrics is the subset of *metrics.Metrics the engine reports into.
// Optional; a nil Metrics disables instrumentation.
type Metrics interface {
	pipeline.Metrics
	BackupSetOpened()
	PassObserved(seconds float64)
}

// Engine orchestrates a single backup root against a single index and
// object store.
type Engine struct {
	root        string
	working     string
	period      time.Duration
	maxFileSize int64
	excludes    []string

	idx      *index.Index
	st       store.Store
	pipeline *pipeline.Pipeline
	watcher  *fswatch.Watcher
	scanner  *fswatch.Scanner
	metrics  Metrics
}

// New wires an Engine from cfg: canonicalises the backup root, builds the
// exclude set (always including the working directory), opens the index
// database, and constructs the configured object store (local disk, or
// S3-compatible remote when Bucket is set).
func New(cfg config.Config, metrics Metrics) (*Engine, error) {
	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, herror.Wrap(herror.Engine, "canonicalise backup root", err)
	}
	working, err := filepath.Abs(cfg.Working)
	if err != nil {
		return nil, herror.Wrap(herror.Engine, "canonicalise working directory", err)
	}

	idx, err := index.Open(filepath.Join(working, "haumaru.idx"))
	if err != nil {
		return nil, err
	}

	var st store.Store
	if cfg.Bucket != "" {
		st, err = store.NewRemoteStore(cfg.Bucket, cfg.Prefix, "")
		if err != nil {
			idx.Close()
			return nil, err
		}
	} else {
		st, err = store.NewLocalStore(working)
		if err != nil {
			idx.Close()
			return nil, err
		}
	}

	p := pipeline.New(root, st, idx, metrics)

	e := &Engine{
		root:        root,
		working:     working,
		period:      time.Duration(cfg.Period) * time.Second,
		maxFileSize: cfg.MaxFileSize,
		excludes:    []string{working},
		idx:         idx,
		st:          st,
		pipeline:    p,
		metrics:     metrics,
	}
	e.scanner = fswatch.NewScanner(root, idx)
	return e, nil
}

// Close releases the index database handle.
func (e *Engine) Close() error {
	return e.idx.Close()
}

// relKey converts an absolute path beneath root into the slash-separated
// key used throughout the index and object store.
func (e *Engine) relKey(abs string) (string, bool) {
	rel, err := filepath.Rel(e.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

func (e *Engine) excluded(abs string) bool {
	for _, prefix := range e.excludes {
		if strings.HasPrefix(abs, prefix) {
			return true
		}
	}
	return false
}

func (e *Engine) absPath(key string) string {
	if key == "" {
		return e.root
	}
	return filepath.Join(e.root, filepath.FromSlash(key))
}
