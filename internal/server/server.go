// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package server connects native engine events to the command dispatcher
// and gives plugins their owner-scoped view of the host.
package server

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"

	"github.com/holomush/pluginhost/internal/api"
	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/entity"
	"github.com/holomush/pluginhost/internal/native"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/schedule"
)

var tracer = otel.Tracer("pluginhost/server")

// Defaults for the tick loop and chat parsing.
const (
	DefaultTickInterval = 50 * time.Millisecond
	DefaultChatPrefix   = "/"
)

// Server owns the command pipeline, the entity pools and the tick loop.
type Server struct {
	engine native.Engine
	logger *slog.Logger

	players  *entity.Pool[*entity.Player]
	vehicles *entity.Pool[*entity.Vehicle]
	objects  *entity.Pool[*entity.Object]

	// names remembers player names by id so aliases can be cleared after
	// the engine has dropped the player.
	namesMu sync.Mutex
	names   map[int]string

	registry   *command.Registry
	chain      *command.Chain
	dispatcher *command.Dispatcher
	aliases    *command.Aliases
	auth       authorizer
	limiter    *command.RateLimiter

	queue  *schedule.Queue
	timers *schedule.Timers

	console  *ConsoleActor
	tick     time.Duration
	prefix   string
	now      func() time.Time
	consoleW func(text string)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTickInterval sets how often Run ticks.
func WithTickInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithChatPrefix sets the prefix that marks chat lines as commands.
func WithChatPrefix(prefix string) Option {
	return func(s *Server) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithAuthorizer enables permission checks for players. The console
// actor holds every permission regardless.
func WithAuthorizer(a command.Authorizer) Option {
	return func(s *Server) { s.auth.next = a }
}

// WithRateLimiter throttles players.
func WithRateLimiter(rl *command.RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithConsoleOutput sets where messages to the console actor go. By
// default they are logged.
func WithConsoleOutput(fn func(text string)) Option {
	return func(s *Server) { s.consoleW = fn }
}

// WithClock replaces time.Now for timers.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithAliases installs server-wide command aliases. Aliases that would
// expand into themselves are logged and skipped.
func WithAliases(aliases map[string]string) Option {
	return func(s *Server) {
		for _, name := range s.aliases.LoadSystem(aliases) {
			s.logger.Warn("alias rejected", "alias", name)
		}
	}
}

// New creates a server in front of engine.
func New(engine native.Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, oops.In("server").Errorf("engine is nil")
	}
	s := &Server{
		engine:   engine,
		logger:   slog.Default(),
		registry: command.NewRegistry(),
		aliases:  command.NewAliases(),
		tick:     DefaultTickInterval,
		prefix:   DefaultChatPrefix,
		now:      time.Now,
		names:    make(map[int]string),
	}
	s.players = entity.NewPool(native.CategoryPlayer, engine, func(id int) *entity.Player {
		p := entity.NewPlayer(engine, id)
		if engine.IsEntityValid(native.CategoryPlayer, id) {
			s.namesMu.Lock()
			s.names[id] = p.Name()
			s.namesMu.Unlock()
		}
		return p
	})
	s.vehicles = entity.NewPool(native.CategoryVehicle, engine, func(id int) *entity.Vehicle {
		return entity.NewVehicle(engine, id)
	})
	s.objects = entity.NewPool(native.CategoryObject, engine, func(id int) *entity.Object {
		return entity.NewObject(engine, id)
	})
	for _, opt := range opts {
		opt(s)
	}

	if s.consoleW == nil {
		logger := s.logger
		s.consoleW = func(text string) { logger.Info(text, "actor", ConsoleName) }
	}
	s.console = NewConsoleActor(s.consoleW)
	s.queue = schedule.NewQueue(s.logger)
	s.timers = schedule.NewTimers(schedule.WithClock(s.now), schedule.WithTimerLogger(s.logger))
	s.chain = command.NewChain(s)

	dopts := []command.DispatcherOption{
		command.WithAuthorizer(s.auth),
		command.WithLogger(s.logger),
	}
	if s.limiter != nil {
		dopts = append(dopts, command.WithRateLimiter(s.limiter))
	}
	d, err := command.NewDispatcher(s.registry, s.chain, dopts...)
	if err != nil {
		return nil, oops.In("server").Wrap(err)
	}
	d.OnFailure(s.reportFailure)
	s.dispatcher = d
	return s, nil
}

// ManagerOptions wires a plugin manager to this server: plugin commands
// land in the registry, plugins get scoped handles that take effect on
// start, and a stopped plugin's timers, queued tasks and hooks are
// dropped.
func (s *Server) ManagerOptions() []plugin.ManagerOption {
	return []plugin.ManagerOption{
		plugin.WithCommandSink(s.registry),
		plugin.WithServer(s.stagedFor),
		plugin.WithCleanup(s.release),
	}
}

// ServerFor returns a handle whose hooks, tasks and timers take effect
// immediately.
func (s *Server) ServerFor(owner string) api.Server {
	return &scoped{s: s, owner: owner, live: true}
}

// stagedFor returns the handle given to a loading plugin. The manager
// commits it once the plugin starts.
func (s *Server) stagedFor(owner string) api.Server {
	return &scoped{s: s, owner: owner}
}

// Registry returns the command registry.
func (s *Server) Registry() *command.Registry { return s.registry }

// Chain returns the converter chain. Custom converters registered here
// apply to every command.
func (s *Server) Chain() *command.Chain { return s.chain }

// Dispatcher returns the command dispatcher.
func (s *Server) Dispatcher() *command.Dispatcher { return s.dispatcher }

// Aliases returns the alias table.
func (s *Server) Aliases() *command.Aliases { return s.aliases }

// Console returns the console actor.
func (s *Server) Console() *ConsoleActor { return s.console }

// Queue returns the task queue drained each tick.
func (s *Server) Queue() *schedule.Queue { return s.queue }

// Timers returns the timer set fired each tick.
func (s *Server) Timers() *schedule.Timers { return s.timers }

func (s *Server) release(owner string) {
	timers := s.timers.CancelOwner(owner)
	tasks := s.queue.DropOwner(owner)
	s.dispatcher.RemoveHooks(owner)
	s.logger.Debug("released plugin resources", "plugin", owner, "timers", timers, "tasks", tasks)
}

// Tick drains the task queue once, then fires due timers and drops
// wrappers of entities that no longer exist. It must only be called from
// the tick goroutine.
func (s *Server) Tick(ctx context.Context) {
	start := time.Now()
	tasks := s.queue.Drain(ctx)
	fired := s.timers.Fire(ctx)
	s.sweep()

	TicksTotal.Inc()
	TasksRun.Add(float64(tasks))
	TimersFired.Add(float64(fired))
	TickDuration.Observe(time.Since(start).Seconds())
}

// Run ticks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info("tick loop started", "interval", s.tick)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tick loop stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Server) sweep() {
	for _, p := range s.players.All() {
		if !s.players.Validate(p) {
			s.forget(p.ID())
		}
	}
	for _, v := range s.vehicles.All() {
		s.vehicles.Validate(v)
	}
	for _, o := range s.objects.All() {
		s.objects.Validate(o)
	}
}

// HandleChat treats a chat line starting with the chat prefix as a
// command from the player. It reports whether the line was consumed.
func (s *Server) HandleChat(ctx context.Context, playerID int, text string) bool {
	line, ok := strings.CutPrefix(strings.TrimSpace(text), s.prefix)
	if !ok {
		return false
	}
	p, ok := s.Player(playerID)
	if !ok {
		s.logger.Warn("chat from unknown player", "player", playerID)
		return false
	}
	line, _ = s.aliases.Resolve(p.Name(), line, s.registry)
	_, _ = s.dispatcher.Execute(ctx, line, p) //nolint:errcheck // failures reach the player through reportFailure
	return true
}

// HandleConsole runs a console line. The chat prefix is optional.
func (s *Server) HandleConsole(ctx context.Context, text string) (command.Outcome, error) {
	line := strings.TrimSpace(text)
	line = strings.TrimPrefix(line, s.prefix)
	if line == "" {
		return command.OutcomeContinue, nil
	}
	line, _ = s.aliases.Resolve(ConsoleName, line, s.registry)
	return s.dispatcher.Execute(ctx, line, s.console)
}

// PlayerConnected caches the wrapper for a player that just joined.
func (s *Server) PlayerConnected(_ context.Context, playerID int) (*entity.Player, error) {
	if !s.engine.IsEntityValid(native.CategoryPlayer, playerID) {
		return nil, oops.Code(native.CodeEntityNotFound).
			With("category", native.CategoryPlayer).
			With("id", playerID).
			Errorf("player %d is not connected", playerID)
	}
	p, err := s.players.GetOrCreate(playerID, nil)
	if err != nil {
		return nil, err
	}
	PlayersOnline.Set(float64(s.players.Len()))
	s.logger.Info("player connected", "player", p.Name(), "id", playerID)
	return p, nil
}

// PlayerDisconnected drops the player's wrapper and session aliases.
func (s *Server) PlayerDisconnected(_ context.Context, playerID int) {
	p, ok := s.players.Get(playerID)
	if !ok {
		return
	}
	s.forget(playerID)
	s.players.Remove(p)
	PlayersOnline.Set(float64(s.players.Len()))
	s.logger.Info("player disconnected", "id", playerID)
}

// forget drops the remembered name of a player who is gone and the
// aliases set under it.
func (s *Server) forget(id int) {
	s.namesMu.Lock()
	name, ok := s.names[id]
	delete(s.names, id)
	s.namesMu.Unlock()
	if ok {
		s.aliases.Clear(name)
	}
}

func (s *Server) reportFailure(ctx context.Context, f command.Failure) {
	if f.Actor == nil {
		return
	}
	s.logger.DebugContext(ctx, "command failed",
		"command", f.Command,
		"kind", f.Kind.String(),
		"actor", f.Actor.Name())
	f.Actor.SendMessage(command.PlayerMessage(f.Err))
}

// Execute dispatches line as actor. A leading chat prefix is ignored.
func (s *Server) Execute(ctx context.Context, line string, actor command.Actor) (command.Outcome, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), s.prefix)
	return s.dispatcher.Execute(ctx, line, actor)
}
