// Package lifecycle owns the per-module property indexes. It rebuilds an
// index in the background when a module's dependencies change, keeps serving
// the previous index until the new one is ready, and swaps it in atomically.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mattmok/idea-spring-boot-assistant/internal/completion"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/locator"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/mattmok/idea-spring-boot-assistant/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownModule is returned for a module with no registered dependencies
	ErrUnknownModule = errors.New("unknown module")
	// ErrClosed is returned once the manager or the module has been closed
	ErrClosed = errors.New("index manager closed")
)

// Rebuild outcomes, as recorded in metrics and traces
const (
	OutcomePublished  = "published"
	OutcomeUnchanged  = "unchanged"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// Config tunes index rebuilds
type Config struct {
	// Workers bounds the descriptors parsed concurrently in one rebuild
	Workers int `mapstructure:"workers" validate:"gte=0"`
	// CatalogCacheSize is the number of parsed descriptors kept across
	// rebuilds
	CatalogCacheSize int `mapstructure:"catalog_cache_size" validate:"gte=1"`
}

// DefaultConfig returns the default rebuild settings
func DefaultConfig() Config {
	return Config{Workers: runtime.GOMAXPROCS(0), CatalogCacheSize: 512}
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records rebuild and cache metrics
func WithMetrics(m *telemetry.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithTracer traces rebuilds
func WithTracer(t *telemetry.Tracer) Option {
	return func(mgr *Manager) { mgr.tracer = t }
}

// WithParser overrides the descriptor parser
func WithParser(p *metadata.Parser) Option {
	return func(mgr *Manager) { mgr.parser = p }
}

// snapshot is a published index with the dependency-set identity it was
// built from
type snapshot struct {
	idx      *index.Index
	identity string
	built    time.Time
}

type module struct {
	id      string
	deps    []locator.Dependency
	current atomic.Pointer[snapshot]

	// guarded by Manager.mu
	generation uint64
	pending    bool
	stale      bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastErr    error
}

// Manager caches one index per module
type Manager struct {
	cfg      Config
	locator  *locator.Locator
	parser   *metadata.Parser
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	catalogs *lru.Cache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	modules map[string]*module
	closed  bool
}

// New creates a manager. loc and logger may be nil.
func New(cfg Config, loc *locator.Locator, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = locator.New(logger)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.CatalogCacheSize <= 0 {
		cfg.CatalogCacheSize = DefaultConfig().CatalogCacheSize
	}
	cache, err := lru.New(cfg.CatalogCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		locator:  loc,
		logger:   logger,
		catalogs: cache,
		ctx:      ctx,
		cancel:   cancel,
		modules:  make(map[string]*module),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.parser == nil {
		m.parser = metadata.NewParser(logger)
	}
	if m.tracer == nil {
		m.tracer = telemetry.NoopTracer()
	}
	return m, nil
}

// SetDependencies registers or updates the dependency closure of a module
// and starts a rebuild. A rebuild already running for the module is
// superseded; its result is discarded.
func (m *Manager) SetDependencies(moduleID string, deps []locator.Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	mod, ok := m.modules[moduleID]
	if !ok {
		mod = &module{id: moduleID}
		m.modules[moduleID] = mod
	}
	mod.deps = append([]locator.Dependency(nil), deps...)
	m.startRebuildLocked(mod)
	return nil
}

// Invalidate forces a rebuild of moduleID, for instance after a dependency
// changed on disk. The current index keeps serving until the rebuild is
// published, and is kept as is when the located descriptors are unchanged.
func (m *Manager) Invalidate(moduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	mod, ok := m.modules[moduleID]
	if !ok {
		return ErrUnknownModule
	}
	m.startRebuildLocked(mod)
	return nil
}

// Get returns the current index of moduleID without blocking. The index may
// be stale while a rebuild is running. A module whose last rebuild failed
// is rebuilt again in the background.
func (m *Manager) Get(moduleID string) (*index.Index, bool) {
	m.mu.Lock()
	mod, ok := m.modules[moduleID]
	if ok && mod.stale && !mod.pending && !m.closed {
		m.startRebuildLocked(mod)
	}
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	snap := mod.current.Load()
	if snap == nil {
		return nil, false
	}
	return snap.idx, true
}

// Wait blocks until no rebuild is pending for moduleID and returns the
// resulting index
func (m *Manager) Wait(ctx context.Context, moduleID string) (*index.Index, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		mod, ok := m.modules[moduleID]
		if !ok {
			m.mu.Unlock()
			return nil, ErrUnknownModule
		}
		if !mod.pending {
			lastErr := mod.lastErr
			m.mu.Unlock()
			if snap := mod.current.Load(); snap != nil {
				return snap.idx, nil
			}
			if lastErr == nil {
				lastErr = completion.ErrUnavailable
			}
			return nil, lastErr
		}
		done := mod.done
		m.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Source adapts a module to a completion source: it answers immediately
// with the current index, possibly stale, and otherwise waits for the
// first build.
func (m *Manager) Source(moduleID string) completion.Source {
	return completion.SourceFunc(func(ctx context.Context) (*index.Index, error) {
		if idx, ok := m.Get(moduleID); ok {
			return idx, nil
		}
		return m.Wait(ctx, moduleID)
	})
}

// Close releases the index of moduleID and cancels its rebuild
func (m *Manager) Close(moduleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[moduleID]
	if !ok {
		return
	}
	if mod.cancel != nil {
		mod.cancel()
	}
	if mod.pending {
		mod.pending = false
		close(mod.done)
	}
	mod.current.Store(nil)
	delete(m.modules, moduleID)
	m.metrics.DeleteModule(moduleID)
	m.logger.Debug("closed module", zap.String("module", moduleID))
}

// Shutdown cancels all rebuilds, releases every index and waits for the
// rebuild goroutines to exit or ctx to end
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ids := make([]string, 0, len(m.modules))
	for id := range m.modules {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	m.cancel()
	for _, id := range ids {
		m.Close(id)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("index manager shutdown: %w", ctx.Err())
	}
}

// Metrics returns the metrics the manager records into, possibly nil
func (m *Manager) Metrics() *telemetry.Metrics {
	return m.metrics
}

// Modules lists the registered module ids, sorted
func (m *Manager) Modules() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.modules))
	for id := range m.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns the registered dependencies of moduleID
func (m *Manager) Dependencies(moduleID string) []locator.Dependency {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mod, ok := m.modules[moduleID]; ok {
		return append([]locator.Dependency(nil), mod.deps...)
	}
	return nil
}

// ModulesFor returns the modules with a dependency at or containing path
func (m *Manager) ModulesFor(path string) []string {
	path = filepath.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, mod := range m.modules {
		for _, dep := range mod.deps {
			if within(path, filepath.Clean(dep.Path)) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// startRebuildLocked bumps the module generation and starts a rebuild for
// it, cancelling any rebuild of an older generation. m.mu must be held.
func (m *Manager) startRebuildLocked(mod *module) {
	if mod.cancel != nil {
		mod.cancel()
	}
	mod.generation++
	if !mod.pending {
		mod.pending = true
		mod.done = make(chan struct{})
	}
	ctx, cancel := context.WithCancel(m.ctx)
	mod.cancel = cancel

	gen := mod.generation
	deps := mod.deps
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.rebuild(ctx, mod, gen, deps)
	}()
}

func (m *Manager) rebuild(ctx context.Context, mod *module, gen uint64, deps []locator.Dependency) {
	rebuildID := uuid.NewString()
	start := time.Now()
	log := m.logger.With(zap.String("module", mod.id), zap.String("rebuild_id", rebuildID), zap.Uint64("generation", gen))
	m.metrics.RecordRebuildStarted(mod.id)

	ctx, span := m.tracer.StartRebuildSpan(ctx, mod.id, rebuildID)
	defer span.End()

	snap, outcome, err := m.build(ctx, mod, deps, log)
	if outcome != OutcomeUnchanged && err == nil {
		span.SetAttributes(telemetry.AttrEntries.Int(snap.idx.Len()))
	}

	m.mu.Lock()
	switch {
	case m.modules[mod.id] != mod || mod.generation != gen:
		outcome = OutcomeSuperseded
	case err != nil:
		outcome = OutcomeFailed
		mod.stale = true
		mod.lastErr = err
	default:
		if outcome == OutcomePublished {
			mod.current.Store(snap)
			m.metrics.SetIndexEntries(mod.id, snap.idx.Len())
		}
		mod.stale = false
		mod.lastErr = nil
	}
	if outcome != OutcomeSuperseded && mod.pending {
		mod.pending = false
		close(mod.done)
	}
	m.mu.Unlock()

	if outcome == OutcomeFailed {
		telemetry.RecordError(span, err)
	}
	span.SetAttributes(telemetry.AttrOutcome.String(outcome))
	duration := time.Since(start)
	m.metrics.RecordRebuildCompleted(mod.id, outcome, duration)
	log.Debug("index rebuild finished", zap.String("outcome", outcome), zap.Duration("duration", duration), zap.Error(err))
}

// build locates and parses the descriptors of deps. It reports
// OutcomeUnchanged without parsing when the located documents have the
// identity of the published snapshot.
func (m *Manager) build(ctx context.Context, mod *module, deps []locator.Dependency, log *zap.Logger) (*snapshot, string, error) {
	docs, err := m.locator.Locate(ctx, deps)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("failed to locate descriptors: %w", err)
	}
	identity := locator.Identity(docs)
	if cur := mod.current.Load(); cur != nil && cur.identity == identity {
		return cur, OutcomeUnchanged, nil
	}

	catalogs, err := m.parseAll(ctx, docs, log)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	idx := index.Build(catalogs...)
	log.Info("index built",
		zap.Int("descriptors", len(docs)),
		zap.Int("entries", idx.Len()),
		zap.String("build_id", idx.BuildID()))
	return &snapshot{idx: idx, identity: identity, built: time.Now()}, OutcomePublished, nil
}

// parseAll parses docs with bounded parallelism, reusing cached catalogs.
// Unparseable descriptors are logged and left out; the result keeps the
// priority order of docs.
func (m *Manager) parseAll(ctx context.Context, docs []locator.Document, log *zap.Logger) ([]*metadata.Catalog, error) {
	catalogs := make([]*metadata.Catalog, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	for i, doc := range docs {
		key := catalogKey(doc)
		if cached, ok := m.catalogs.Get(key); ok {
			m.metrics.RecordCacheHit()
			catalogs[i] = cached.(*metadata.Catalog)
			continue
		}
		m.metrics.RecordCacheMiss()

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := m.parseDocument(doc)
			m.metrics.RecordDescriptorParsed(err == nil)
			if err != nil {
				log.Warn("skipping descriptor", zap.String("location", doc.Location), zap.Error(err))
				return nil
			}
			m.catalogs.Add(key, c)
			catalogs[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return catalogs, nil
}

func (m *Manager) parseDocument(doc locator.Document) (*metadata.Catalog, error) {
	rc, err := doc.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return m.parser.ParseReader(rc, doc.Origin())
}

// catalogKey identifies a parsed catalog: the same content parsed for a
// different origin yields a different catalog.
func catalogKey(doc locator.Document) string {
	return doc.Hash + "|" + doc.Location + "|" + doc.Dependency.ID + "|" + strconv.Itoa(doc.Priority)
}
