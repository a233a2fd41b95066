package engine

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/Priyanshu23/bitdb/config"
	"github.com/Priyanshu23/bitdb/mensa"
)

// Engine owns every open Partition plus the config and logger threaded
// into them.
type Engine struct {
	cfg *config.Config
	log zerolog.Logger

	mu         sync.RWMutex
	partitions map[string]*Partition
}

// New builds an Engine bound to cfg, logging at cfg.LogLevel.
func New(cfg *config.Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		log:        log.Level(cfg.LogLevel),
		partitions: map[string]*Partition{},
	}
}

// OpenPartition registers a partition directory under name, threading the
// engine's logger and that partition's slice of config through it.
func (e *Engine) OpenPartition(name, dir string, specs []ColumnSpec, nrows int) *Partition {
	p := NewPartition(name, dir, specs, nrows, e.cfg.Partition(name), e.log)
	e.mu.Lock()
	e.partitions[name] = p
	e.mu.Unlock()
	return p
}

// Partition returns a previously opened partition by name.
func (e *Engine) Partition(name string) (*Partition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.partitions[name]
	return p, ok
}

// Table builds a mensa.Table fanning out over every named partition (or
// every open partition, if names is empty), the multi-partition query
// entry point. cmd/bitdb's "query" subcommand does not use it; it selects
// from a single partition directly.
func (e *Engine) Table(names ...string) (*mensa.Table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(names) == 0 {
		for name := range e.partitions {
			names = append(names, name)
		}
	}
	parts := make([]mensa.Partition, 0, len(names))
	for _, name := range names {
		p, ok := e.partitions[name]
		if !ok {
			return nil, fmt.Errorf("engine: unknown partition %q", name)
		}
		parts = append(parts, p)
	}
	return mensa.NewTable(e.log, parts), nil
}

// DescribeColumn reports a human-readable summary of one column's on-disk
// footprint, the "describe" subcommand's per-column line.
func (e *Engine) DescribeColumn(partition, col string) (string, error) {
	p, ok := e.Partition(partition)
	if !ok {
		return "", fmt.Errorf("engine: unknown partition %q", partition)
	}
	size, err := p.ColumnFileSize(col)
	if err != nil {
		return "", fmt.Errorf("engine: describe %s.%s: %w", partition, col, err)
	}
	return fmt.Sprintf("%s.%s: %s (%d rows)", partition, col, humanize.Bytes(uint64(size)), p.NRows()), nil
}
