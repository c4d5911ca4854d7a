// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin provides plugin management and lifecycle control.
package plugin

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/pluginhost/internal/api"
	"github.com/holomush/pluginhost/internal/logging"
	"github.com/holomush/pluginhost/internal/store"
	"github.com/holomush/pluginhost/pkg/errutil"
)

var tracer = otel.Tracer("pluginhost/plugin")

// Failure records a load or start failure, including loads that never
// produced a plugin id.
type Failure struct {
	Path string
	ID   string
	Err  error
	At   time.Time
}

// Manager owns every plugin instance. Load, Start, Stop, Restart, LoadAll
// and Shutdown are serialized; read accessors may run concurrently.
type Manager struct {
	admin sync.Mutex

	mu        sync.RWMutex
	instances map[string]*Instance
	active    []*Instance
	failures  []Failure

	pluginsDir string
	isolators  map[Type]Isolator
	storage    store.KVStore
	sink       CommandSink
	server     func(owner string) api.Server
	logger     *slog.Logger
	cleanups   []func(owner string)
	events     broadcaster
	now        func() time.Time
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithPluginsDir sets the directory Discover scans.
func WithPluginsDir(dir string) ManagerOption {
	return func(m *Manager) { m.pluginsDir = dir }
}

// WithIsolator installs the backend for plugins of type t.
func WithIsolator(t Type, iso Isolator) ManagerOption {
	return func(m *Manager) { m.isolators[t] = iso }
}

// WithStorage sets the store plugins get namespaces from.
func WithStorage(kv store.KVStore) ManagerOption {
	return func(m *Manager) { m.storage = kv }
}

// WithCommandSink sets where plugin commands are registered on start.
func WithCommandSink(sink CommandSink) ManagerOption {
	return func(m *Manager) { m.sink = sink }
}

// WithServer sets the factory for owner-scoped server handles.
func WithServer(fn func(owner string) api.Server) ManagerOption {
	return func(m *Manager) { m.server = fn }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithCleanup adds a function run with the plugin id whenever a plugin
// stops or fails to start.
func WithCleanup(fn func(owner string)) ManagerOption {
	return func(m *Manager) { m.cleanups = append(m.cleanups, fn) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a plugin manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		instances: make(map[string]*Instance),
		isolators: make(map[Type]Isolator),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.storage == nil {
		m.storage = store.NewMemoryKVStore()
	}
	return m
}

// Subscribe returns a channel of lifecycle events and a function that
// closes it. Events are dropped for subscribers that fall behind.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe()
}

// GetPlugin returns the instance for id.
func (m *Manager) GetPlugin(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// Plugins returns every known instance sorted by id.
func (m *Manager) Plugins() []*Instance {
	m.mu.RLock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Active returns the started plugins in start order.
func (m *Manager) Active() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Instance(nil), m.active...)
}

// Failures returns recorded failures, oldest first.
func (m *Manager) Failures() []Failure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Failure(nil), m.failures...)
}

// Load loads the plugin at path. path is a plugin directory or
// StaticPath(id). A plugin id already held by a loaded or started instance
// is rejected with DUPLICATE_ID and the existing instance is untouched.
func (m *Manager) Load(ctx context.Context, path string) (*Instance, error) {
	m.admin.Lock()
	defer m.admin.Unlock()
	return m.load(ctx, path)
}

// Start starts a loaded plugin. Every dependency must already be started.
func (m *Manager) Start(ctx context.Context, id string) error {
	m.admin.Lock()
	defer m.admin.Unlock()
	inst, ok := m.GetPlugin(id)
	if !ok {
		return ErrNotFound(id)
	}
	return m.start(ctx, inst)
}

// Stop stops a plugin and unloads its module. Unless force is set, the
// stop is refused while started plugins depend on it.
func (m *Manager) Stop(ctx context.Context, id string, force bool) error {
	m.admin.Lock()
	defer m.admin.Unlock()
	inst, ok := m.GetPlugin(id)
	if !ok {
		return ErrNotFound(id)
	}
	return m.stop(ctx, inst, force)
}

// Restart stops, reloads and starts a plugin from its original path. A
// failed plugin may be restarted. If the reload fails the plugin ends up
// Failed.
func (m *Manager) Restart(ctx context.Context, id string) error {
	m.admin.Lock()
	defer m.admin.Unlock()
	inst, ok := m.GetPlugin(id)
	if !ok {
		return ErrNotFound(id)
	}
	if inst.State().Active() {
		if err := m.stop(ctx, inst, false); err != nil {
			return err
		}
	}
	inst, err := m.load(ctx, inst.Path())
	if err != nil {
		return err
	}
	return m.start(ctx, inst)
}

// Discover lists plugin directories under the plugins directory. A missing
// directory yields no plugins.
func (m *Manager) Discover(_ context.Context) ([]string, error) {
	if m.pluginsDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(m.pluginsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "discover").With("dir", m.pluginsDir).Wrap(err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.pluginsDir, entry.Name())
		if !HasDescriptor(dir) {
			m.logger.Debug("skipping directory without descriptor", "dir", dir)
			continue
		}
		paths = append(paths, dir)
	}
	return paths, nil
}

// LoadAll loads the given paths and every discovered plugin, orders them by
// dependency and starts them. Individual failures are logged and recorded;
// only a failure to scan the plugins directory is returned.
func (m *Manager) LoadAll(ctx context.Context, paths ...string) error {
	discovered, err := m.Discover(ctx)
	if err != nil {
		return err
	}

	m.admin.Lock()
	defer m.admin.Unlock()

	all := make([]string, 0, len(paths)+len(discovered))
	all = append(all, paths...)
	all = append(all, discovered...)

	var loaded []*Descriptor
	for _, path := range all {
		inst, err := m.load(ctx, path)
		if err != nil {
			continue
		}
		loaded = append(loaded, inst.Descriptor())
	}

	result := OrderWith(loaded, func(id string) bool {
		inst, ok := m.GetPlugin(id)
		return ok && inst.State() == StateStarted
	})
	for _, d := range loaded {
		if err, bad := result.Failed[d.ID]; bad {
			inst, _ := m.GetPlugin(d.ID)
			m.unloadModule(ctx, inst)
			m.fail(inst, err)
		}
	}
	for _, d := range result.Start {
		inst, _ := m.GetPlugin(d.ID)
		_ = m.start(ctx, inst) //nolint:errcheck // start failures are logged and recorded
	}
	return nil
}

// Shutdown force-stops every started plugin in reverse start order and
// unloads plugins that were loaded but never started.
func (m *Manager) Shutdown(ctx context.Context) {
	m.admin.Lock()
	defer m.admin.Unlock()

	active := m.Active()
	for i := len(active) - 1; i >= 0; i-- {
		_ = m.stop(ctx, active[i], true) //nolint:errcheck // forced stop only fails on state races, logged
	}
	for _, inst := range m.Plugins() {
		if inst.State() == StateLoaded {
			_ = m.stop(ctx, inst, true) //nolint:errcheck // see above
		}
	}
}

func (m *Manager) load(ctx context.Context, path string) (_ *Instance, err error) {
	ctx, span := tracer.Start(ctx, "plugin.load", trace.WithAttributes(attribute.String("plugin.path", path)))
	defer endSpan(span, &err)

	iso, id, err := m.isolatorFor(path)
	if err != nil {
		return nil, m.loadFailed(path, id, err)
	}
	mod, err := iso.Load(ctx, path)
	if err != nil {
		return nil, m.loadFailed(path, id, err)
	}

	exp := mod.Exposed()
	desc := exp.Descriptor
	if desc == nil {
		m.unload(ctx, mod, id)
		return nil, m.loadFailed(path, id, oops.Errorf("module exposes no descriptor"))
	}
	if err := desc.Validate(); err != nil {
		m.unload(ctx, mod, id)
		if ValidateID(desc.ID) == nil {
			id = desc.ID
		}
		return nil, m.loadFailed(path, id, err)
	}
	if err := desc.CheckRuntime(); err != nil {
		m.unload(ctx, mod, desc.ID)
		return nil, m.loadFailed(path, desc.ID, err)
	}
	span.SetAttributes(attribute.String("plugin.id", desc.ID))

	m.mu.Lock()
	inst := m.instances[desc.ID]
	if inst != nil && inst.State().Active() {
		m.mu.Unlock()
		m.unload(ctx, mod, desc.ID)
		err := ErrDuplicateID(desc.ID, inst.Path(), path)
		m.record(path, desc.ID, err)
		m.logger.Warn("plugin rejected", "plugin", desc.DisplayName(), "path", path, "error", err)
		return nil, err
	}
	if inst == nil {
		inst = &Instance{desc: desc, path: path}
		m.instances[desc.ID] = inst
	}
	m.mu.Unlock()

	env := m.newEnv(desc)
	main, entries, err := instantiate(exp, env)
	if err != nil {
		m.unload(ctx, mod, desc.ID)
		return nil, m.loadFailed(path, desc.ID, err)
	}

	inst.mu.Lock()
	inst.desc = desc
	inst.path = path
	inst.module = mod
	inst.main = main
	inst.entries = entries
	inst.env = env
	inst.mu.Unlock()

	if err := m.transition(inst, StateLoaded, nil); err != nil {
		m.unloadModule(ctx, inst)
		return nil, err
	}
	m.logger.Info("plugin loaded",
		"plugin", desc.DisplayName(),
		"version", desc.Version,
		"path", path)
	return inst, nil
}

func (m *Manager) isolatorFor(path string) (Isolator, string, error) {
	if IsStaticPath(path) {
		id := strings.TrimPrefix(path, StaticPrefix)
		iso, ok := m.isolators[TypeStatic]
		if !ok {
			return nil, id, oops.Errorf("no isolator for static plugins")
		}
		return iso, id, nil
	}
	desc, err := ReadDescriptor(path)
	if err != nil {
		return nil, "", err
	}
	iso, ok := m.isolators[desc.Type]
	if !ok {
		return nil, desc.ID, oops.With("type", string(desc.Type)).Errorf("no isolator for %s plugins", desc.Type)
	}
	return iso, desc.ID, nil
}

func (m *Manager) newEnv(desc *Descriptor) *Env {
	env := &Env{
		Descriptor: desc,
		Logger:     logging.ForPlugin(m.logger, desc.ID, desc.Version, desc.Debug),
		Storage:    store.NewNamespace(m.storage, desc.ID),
		Commands:   NewCommands(desc.ID),
		Plugins:    m,
	}
	if m.server != nil {
		env.Server = m.server(desc.ID)
	}
	return env
}

func instantiate(exp Exposed, env *Env) (main Plugin, entries []EntryPoint, err error) {
	errb := oops.With("plugin", env.Descriptor.ID)
	defer func() {
		if r := recover(); r != nil {
			main, entries = nil, nil
			err = errb.Errorf("plugin constructor panicked: %v", r)
		}
	}()

	if exp.Main == nil {
		return nil, nil, errb.Errorf("module exposes no plugin constructor")
	}
	main, err = exp.Main()
	if err != nil {
		return nil, nil, errb.Wrapf(err, "construct plugin")
	}
	if main == nil {
		return nil, nil, errb.Errorf("plugin constructor returned nil")
	}
	if err := main.Attach(env); err != nil {
		return nil, nil, errb.Wrapf(err, "attach plugin")
	}
	for i, ctor := range exp.Entries {
		ep, err := ctor()
		if err != nil {
			return nil, nil, errb.With("entry", i).Wrapf(err, "construct entry point")
		}
		if err := ep.Attach(env); err != nil {
			return nil, nil, errb.With("entry", i).Wrapf(err, "attach entry point")
		}
		entries = append(entries, ep)
	}
	return main, entries, nil
}

func (m *Manager) start(ctx context.Context, inst *Instance) (err error) {
	desc := inst.Descriptor()
	ctx, span := tracer.Start(ctx, "plugin.start", trace.WithAttributes(attribute.String("plugin.id", desc.ID)))
	defer endSpan(span, &err)

	if state := inst.State(); state != StateLoaded {
		return ErrInvalidState(desc.ID, state, StateStarted)
	}
	for _, dep := range desc.Dependencies {
		if d, ok := m.GetPlugin(dep); !ok || d.State() != StateStarted {
			return m.startFailed(inst, ErrMissingDependency(desc.ID, dep))
		}
	}

	inst.mu.RLock()
	main, env := inst.main, inst.env
	inst.mu.RUnlock()

	// Commands and server effects from Attach stay staged until OnStart
	// succeeds. A failed start drops only what OnStart added.
	stager, _ := env.Server.(Stager)
	cmdMark, stageMark := env.Commands.mark(), 0
	if stager != nil {
		stageMark = stager.Mark()
	}
	rollback := func() {
		env.Commands.rollback(cmdMark)
		if stager != nil {
			stager.Rollback(stageMark)
		}
	}
	if err := safeCall(ctx, main.OnStart); err != nil {
		rollback()
		return m.startFailed(inst, err)
	}
	if err := env.Commands.commit(m.sink); err != nil {
		rollback()
		return m.startFailed(inst, err)
	}
	if stager != nil {
		stager.Commit()
	}

	if err := m.transition(inst, StateStarted, nil); err != nil {
		m.release(desc.ID)
		return err
	}
	m.mu.Lock()
	m.active = append(m.active, inst)
	ActivePlugins.Set(float64(len(m.active)))
	m.mu.Unlock()

	m.logger.Info("plugin started", "plugin", desc.DisplayName(), "version", desc.Version)
	return nil
}

// startFailed undoes a partial start. The plugin stays Loaded.
func (m *Manager) startFailed(inst *Instance, cause error) error {
	desc := inst.Descriptor()
	m.release(desc.ID)
	err := oops.Code(CodeStartFailed).With("plugin", desc.ID).Wrapf(cause, "start %s", desc.DisplayName())
	m.record(inst.Path(), desc.ID, err)
	errutil.LogError(m.logger, "plugin failed to start: "+desc.DisplayName(), err)
	return err
}

func (m *Manager) stop(ctx context.Context, inst *Instance, force bool) (err error) {
	desc := inst.Descriptor()
	ctx, span := tracer.Start(ctx, "plugin.stop", trace.WithAttributes(
		attribute.String("plugin.id", desc.ID),
		attribute.Bool("plugin.force", force),
	))
	defer endSpan(span, &err)

	state := inst.State()
	if !state.Active() {
		return ErrInvalidState(desc.ID, state, StateStopped)
	}
	if !force {
		if blocking := m.dependents(desc.ID); len(blocking) > 0 {
			return ErrDependencyLocked(desc.ID, blocking)
		}
	}

	if state == StateStarted {
		inst.mu.RLock()
		main := inst.main
		inst.mu.RUnlock()
		if err := safeCall(ctx, main.OnStop); err != nil {
			errutil.LogError(m.logger, "plugin stop hook failed: "+desc.DisplayName(), err)
		}
	}
	m.release(desc.ID)
	m.unloadModule(ctx, inst)

	m.mu.Lock()
	for i, a := range m.active {
		if a == inst {
			m.active = append(m.active[:i], m.active[i+1:]...)
			break
		}
	}
	ActivePlugins.Set(float64(len(m.active)))
	m.mu.Unlock()

	if err := m.transition(inst, StateStopped, nil); err != nil {
		return err
	}
	m.logger.Info("plugin stopped", "plugin", desc.DisplayName(), "forced", force)
	return nil
}

// dependents lists started plugins that declare id as a dependency.
func (m *Manager) dependents(id string) []string {
	var out []string
	for _, a := range m.Active() {
		if a.Descriptor().DependsOn(id) {
			out = append(out, a.ID())
		}
	}
	return out
}

// release drops everything the plugin registered outside its module.
func (m *Manager) release(id string) {
	if m.sink != nil {
		m.sink.Unregister(id)
	}
	for _, fn := range m.cleanups {
		fn(id)
	}
}

func (m *Manager) unloadModule(ctx context.Context, inst *Instance) {
	if mod := inst.release(); mod != nil {
		m.unload(ctx, mod, inst.ID())
	}
}

func (m *Manager) unload(ctx context.Context, mod Module, id string) {
	if err := mod.Unload(ctx); err != nil {
		errutil.LogError(m.logger.With("plugin", id), "plugin unload failed", err)
	}
}

func (m *Manager) loadFailed(path, id string, cause error) error {
	err := oops.Code(CodeLoadFailed).With("path", path).With("plugin", id).Wrapf(cause, "load %s", path)
	m.record(path, id, err)
	errutil.LogError(m.logger, "plugin failed to load", err)

	if id == "" || ValidateID(id) != nil {
		return err
	}
	m.mu.Lock()
	inst := m.instances[id]
	if inst == nil {
		inst = &Instance{desc: &Descriptor{ID: id}, path: path}
		m.instances[id] = inst
	}
	m.mu.Unlock()
	if !inst.State().Active() {
		m.fail(inst, err)
	}
	return err
}

func (m *Manager) fail(inst *Instance, err error) {
	if inst == nil {
		return
	}
	_ = m.transition(inst, StateFailed, err) //nolint:errcheck // any state may fail
	m.logger.Warn("plugin failed", "plugin", inst.Descriptor().DisplayName(), "error", err)
}

func (m *Manager) record(path, id string, err error) {
	m.mu.Lock()
	m.failures = append(m.failures, Failure{Path: path, ID: id, Err: err, At: m.now()})
	m.mu.Unlock()
}

func (m *Manager) transition(inst *Instance, to State, cause error) error {
	from, err := inst.transition(to, cause, m.now())
	if err != nil {
		return err
	}
	Transitions.WithLabelValues(to.String()).Inc()
	m.events.publish(Event{Plugin: inst.ID(), From: from, To: to, Err: cause, At: m.now()})
	return nil
}

// safeCall runs a plugin hook, converting a panic into an error.
func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Errorf("plugin panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
