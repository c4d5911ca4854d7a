// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package server_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/entity"
	"github.com/holomush/pluginhost/internal/native"
	"github.com/holomush/pluginhost/internal/native/memory"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/capability"
	"github.com/holomush/pluginhost/internal/plugin/static"
	"github.com/holomush/pluginhost/internal/server"
	"github.com/holomush/pluginhost/pkg/errutil"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type lines struct {
	mu  sync.Mutex
	out []string
}

func (l *lines) add(text string) {
	l.mu.Lock()
	l.out = append(l.out, text)
	l.mu.Unlock()
}

func (l *lines) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.out...)
}

func (l *lines) reset() {
	l.mu.Lock()
	l.out = nil
	l.mu.Unlock()
}

type harness struct {
	engine  *memory.Engine
	clock   *clock
	console *lines
	srv     *server.Server
	statics *static.Registry
	mgr     *plugin.Manager
}

func newHarness(t *testing.T, opts ...server.Option) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		engine:  memory.New(),
		clock:   &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		console: &lines{},
		statics: static.NewRegistry(),
	}
	base := []server.Option{
		server.WithLogger(logger),
		server.WithClock(h.clock.Now),
		server.WithConsoleOutput(h.console.add),
	}
	srv, err := server.New(h.engine, append(base, opts...)...)
	require.NoError(t, err)
	h.srv = srv

	mopts := append(srv.ManagerOptions(),
		plugin.WithIsolator(plugin.TypeStatic, h.statics),
		plugin.WithLogger(logger),
	)
	h.mgr = plugin.NewManager(mopts...)
	h.statics.MustAdd(srv.AdminPlugin(h.mgr))
	return h
}

func (h *harness) connect(t *testing.T, name string) *entity.Player {
	t.Helper()
	id, err := h.engine.CreateEntity(native.CategoryPlayer, native.MustArgs(name))
	require.NoError(t, err)
	p, err := h.srv.PlayerConnected(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.mgr.LoadAll(context.Background(), h.statics.Paths()...))
}

func register(t *testing.T, srv *server.Server, name string, fn any, opts ...command.BindOption) {
	t.Helper()
	decl, err := command.Bind(name, fn, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Registry().Register(decl))
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := server.New(nil)
	require.Error(t, err)
}

func TestHandleChat(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")

	var got []string
	register(t, h.srv, "say", func(actor command.Actor, text string) {
		got = append(got, actor.Name()+":"+text)
	}, command.Greedy())

	ctx := context.Background()
	assert.True(t, h.srv.HandleChat(ctx, alice.ID(), "/say hello there"))
	assert.False(t, h.srv.HandleChat(ctx, alice.ID(), "just talking"))
	assert.False(t, h.srv.HandleChat(ctx, 42, "/say ghost"), "unknown players are ignored")

	assert.Equal(t, []string{"alice:hello there"}, got)
}

func TestHandleChat_CustomPrefix(t *testing.T) {
	h := newHarness(t, server.WithChatPrefix("!"))
	alice := h.connect(t, "alice")
	calls := 0
	register(t, h.srv, "ping", func() { calls++ })

	ctx := context.Background()
	assert.False(t, h.srv.HandleChat(ctx, alice.ID(), "/ping"))
	assert.True(t, h.srv.HandleChat(ctx, alice.ID(), "!ping"))
	assert.Equal(t, 1, calls)
}

func TestHandleChat_FailuresReachThePlayer(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	register(t, h.srv, "give", func(command.Actor, int, string) {}, command.ParamNames("amount", "note"))

	ctx := context.Background()
	h.srv.HandleChat(ctx, alice.ID(), "/nope")
	h.srv.HandleChat(ctx, alice.ID(), "/give")
	h.srv.HandleChat(ctx, alice.ID(), "/give lots thanks")

	assert.Equal(t, []string{
		"Unknown command. Try /help.",
		"Usage: /give <amount> <note>",
		"Invalid value: lots",
	}, h.engine.Messages(alice.ID()))
}

func TestHandleConsole(t *testing.T) {
	h := newHarness(t)
	var actors []string
	register(t, h.srv, "whoami", func(actor command.Actor) {
		actors = append(actors, actor.Name())
		actor.SendMessage("you are " + actor.Name())
	})

	ctx := context.Background()
	for _, line := range []string{"whoami", "/whoami", "  whoami  "} {
		outcome, err := h.srv.HandleConsole(ctx, line)
		require.NoError(t, err)
		assert.Equal(t, command.OutcomeContinue, outcome)
	}
	outcome, err := h.srv.HandleConsole(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, command.OutcomeContinue, outcome)

	assert.Equal(t, []string{"console", "console", "console"}, actors)
	assert.Equal(t, []string{"you are console", "you are console", "you are console"}, h.console.all())
}

func TestPermissions(t *testing.T) {
	enf := capability.NewEnforcer()
	require.NoError(t, enf.SetGrants("bob", []string{"shop.*"}))
	h := newHarness(t, server.WithAuthorizer(enf))
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	var buyers []string
	register(t, h.srv, "buy", func(actor command.Actor) {
		buyers = append(buyers, actor.Name())
	}, command.Permission("shop.buy"))

	ctx := context.Background()
	h.srv.HandleChat(ctx, alice.ID(), "/buy")
	h.srv.HandleChat(ctx, bob.ID(), "/buy")
	_, err := h.srv.HandleConsole(ctx, "buy")
	require.NoError(t, err)

	assert.Equal(t, []string{"bob", "console"}, buyers)
	assert.Equal(t, []string{"You don't have permission to do that."}, h.engine.Messages(alice.ID()))
}

func TestActorParameters(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	register(t, h.srv, "poke", func(actor command.Actor, target command.Actor) {
		target.SendMessage(actor.Name() + " pokes you")
	})

	ctx := context.Background()
	h.srv.HandleChat(ctx, alice.ID(), "/poke BOB")
	h.srv.HandleChat(ctx, alice.ID(), "/poke 1")
	h.srv.HandleChat(ctx, alice.ID(), "/poke carol")

	assert.Equal(t, []string{"alice pokes you", "alice pokes you"}, h.engine.Messages(bob.ID()))
	assert.Equal(t, []string{"Invalid value: carol"}, h.engine.Messages(alice.ID()))
}

func TestAliases(t *testing.T) {
	h := newHarness(t, server.WithAliases(map[string]string{"hi": "say hello"}))
	alice := h.connect(t, "alice")
	var said []string
	register(t, h.srv, "say", func(text string) { said = append(said, text) }, command.Greedy())

	ctx := context.Background()
	h.srv.HandleChat(ctx, alice.ID(), "/hi world")
	require.NoError(t, h.srv.Aliases().Set("alice", "yo", "say yo"))
	h.srv.HandleChat(ctx, alice.ID(), "/yo")
	_, err := h.srv.HandleConsole(ctx, "hi")
	require.NoError(t, err)

	assert.Equal(t, []string{"hello world", "yo", "hello"}, said)

	h.srv.PlayerDisconnected(ctx, alice.ID())
	_, applied := h.srv.Aliases().Resolve("alice", "yo", nil)
	assert.False(t, applied, "session aliases are dropped on disconnect")
}

func TestTick_SweepClearsAliasesOfGonePlayers(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	require.NoError(t, h.srv.Aliases().Set("alice", "yo", "say yo"))

	require.NoError(t, h.engine.DestroyEntity(native.CategoryPlayer, alice.ID()))
	h.srv.Tick(context.Background())

	_, applied := h.srv.Aliases().Resolve("alice", "yo", nil)
	assert.False(t, applied, "swept player's aliases are dropped")

	h.connect(t, "alice")
	_, applied = h.srv.Aliases().Resolve("alice", "yo", nil)
	assert.False(t, applied, "a new player with the same name starts clean")
}

func TestTick_QueueThenTimers(t *testing.T) {
	h := newHarness(t)
	api := h.srv.ServerFor("demo")
	ctx := context.Background()

	var order []string
	api.After(time.Second, func(context.Context) { order = append(order, "timer") })
	api.Schedule(func(context.Context) {
		order = append(order, "first")
		api.Schedule(func(context.Context) { order = append(order, "next tick") })
	})
	api.Schedule(func(context.Context) { order = append(order, "second") })

	h.srv.Tick(ctx)
	assert.Equal(t, []string{"first", "second"}, order)

	h.clock.Advance(time.Second)
	h.srv.Tick(ctx)
	assert.Equal(t, []string{"first", "second", "next tick", "timer"}, order)
}

func TestTick_PanickingTaskDoesNotStopQueue(t *testing.T) {
	h := newHarness(t)
	api := h.srv.ServerFor("demo")
	ran := false
	api.Schedule(func(context.Context) { panic("boom") })
	api.Schedule(func(context.Context) { ran = true })

	assert.NotPanics(t, func() { h.srv.Tick(context.Background()) })
	assert.True(t, ran)
}

func TestEveryAndCancel(t *testing.T) {
	h := newHarness(t)
	api := h.srv.ServerFor("demo")
	ctx := context.Background()

	n := 0
	id, err := api.Every(time.Second, func(context.Context) { n++ })
	require.NoError(t, err)
	for range 3 {
		h.clock.Advance(time.Second)
		h.srv.Tick(ctx)
	}
	assert.Equal(t, 3, n)

	assert.True(t, api.Cancel(id))
	assert.False(t, api.Cancel(id))
	h.clock.Advance(time.Second)
	h.srv.Tick(ctx)
	assert.Equal(t, 3, n)

	_, err = api.Every(0, func(context.Context) {})
	require.Error(t, err)
}

func TestOnCommand_Veto(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	calls := 0
	register(t, h.srv, "jump", func() { calls++ })

	h.srv.ServerFor("guard").OnCommand(func(_ context.Context, inv *command.Invocation) bool {
		return inv.Actor.Name() != "alice"
	})

	ctx := context.Background()
	h.srv.HandleChat(ctx, alice.ID(), "/jump")
	_, err := h.srv.HandleConsole(ctx, "jump")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

// worker is a static plugin that leaves timers, tasks and hooks behind.
type worker struct {
	env   *plugin.Env
	fired *int
}

func (w *worker) Attach(env *plugin.Env) error {
	w.env = env
	return env.Commands.Bind("work", func(actor command.Actor) { actor.SendMessage("working") })
}

func (w *worker) OnStart(context.Context) error {
	srv := w.env.Server
	srv.After(time.Second, func(context.Context) { *w.fired++ })
	if _, err := srv.Every(time.Second, func(context.Context) { *w.fired++ }); err != nil {
		return err
	}
	srv.Schedule(func(context.Context) { *w.fired++ })
	srv.OnCommand(func(_ context.Context, inv *command.Invocation) bool {
		return inv.Declaration.Name != "work"
	})
	return nil
}

func (w *worker) OnStop(context.Context) error { return nil }

func addWorker(h *harness, fired *int) {
	h.statics.MustAdd(static.Registration{
		Descriptor: plugin.Descriptor{ID: "worker", Version: "2.1.0"},
		Main:       func() (plugin.Plugin, error) { return &worker{fired: fired}, nil },
	})
}

func TestStoppingPluginReleasesResources(t *testing.T) {
	h := newHarness(t)
	fired := 0
	addWorker(h, &fired)
	h.start(t)

	assert.Equal(t, 2, h.srv.Timers().Len())
	assert.Equal(t, 1, h.srv.Queue().Len())
	_, ok := h.srv.Registry().Get("work")
	require.True(t, ok)

	ctx := context.Background()
	outcome, err := h.srv.HandleConsole(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, command.OutcomeVetoed, outcome, "worker vetoes its own command")

	require.NoError(t, h.mgr.Stop(ctx, "worker", false))

	assert.Zero(t, h.srv.Timers().Len())
	assert.Zero(t, h.srv.Queue().Len())
	_, ok = h.srv.Registry().Get("work")
	assert.False(t, ok)

	h.clock.Advance(time.Minute)
	h.srv.Tick(ctx)
	assert.Zero(t, fired)

	register(t, h.srv, "work", func() {})
	outcome, err = h.srv.HandleConsole(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, command.OutcomeContinue, outcome, "hook is gone")
}

// gate hooks commands, sets timers and queues a task while attaching,
// and fails its first start.
type gate struct {
	env      *plugin.Env
	failures int
	timer    ulid.ULID
}

func (g *gate) Attach(env *plugin.Env) error {
	g.env = env
	srv := env.Server
	srv.OnCommand(func(_ context.Context, inv *command.Invocation) bool {
		return inv.Declaration.Name != "jump"
	})
	g.timer = srv.After(time.Second, func(context.Context) {})
	if !srv.Cancel(srv.After(time.Second, func(context.Context) {})) {
		return errors.New("held timer not cancelled")
	}
	srv.Schedule(func(context.Context) {})
	return nil
}

func (g *gate) OnStart(context.Context) error {
	if g.failures > 0 {
		g.failures--
		return errors.New("not yet")
	}
	return nil
}

func (g *gate) OnStop(context.Context) error { return nil }

func TestPluginEffectsWaitForStart(t *testing.T) {
	h := newHarness(t)
	g := &gate{failures: 1}
	h.statics.MustAdd(static.Registration{
		Descriptor: plugin.Descriptor{ID: "gate", Version: "1.0.0"},
		Main:       func() (plugin.Plugin, error) { return g, nil },
	})
	register(t, h.srv, "jump", func() {})
	ctx := context.Background()
	jump := func() command.Outcome {
		t.Helper()
		outcome, err := h.srv.HandleConsole(ctx, "jump")
		require.NoError(t, err)
		return outcome
	}

	_, err := h.mgr.Load(ctx, plugin.StaticPath("gate"))
	require.NoError(t, err)
	assert.Equal(t, command.OutcomeContinue, jump(), "a loaded plugin hooks nothing")
	assert.Zero(t, h.srv.Timers().Len())
	assert.Zero(t, h.srv.Queue().Len())

	require.Error(t, h.mgr.Start(ctx, "gate"))
	assert.Equal(t, command.OutcomeContinue, jump())
	assert.Zero(t, h.srv.Timers().Len())

	require.NoError(t, h.mgr.Start(ctx, "gate"))
	assert.Equal(t, command.OutcomeVetoed, jump(), "the retried start installs the hook")
	assert.Equal(t, 1, h.srv.Timers().Len())
	assert.Equal(t, 1, h.srv.Queue().Len())

	assert.True(t, g.env.Server.Cancel(g.timer), "held timer ids stay valid")
	assert.Zero(t, h.srv.Timers().Len())
}

func TestEntities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "Bob")

	p, ok := h.srv.PlayerByName("bob")
	require.True(t, ok)
	assert.Same(t, bob, p)
	p, ok = h.srv.Player(alice.ID())
	require.True(t, ok)
	assert.Same(t, alice, p, "one id maps to one wrapper")
	assert.Len(t, h.srv.Players(), 2)

	v, err := h.srv.CreateVehicle(ctx, 411, mgl64.Vec3{1, 2, 3})
	require.NoError(t, err)
	got, ok := h.srv.Vehicle(v.ID())
	require.True(t, ok)
	assert.Same(t, v, got)
	model, err := v.Model()
	require.NoError(t, err)
	assert.Equal(t, int64(411), model)
	pos, err := v.Position()
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, pos)

	require.NoError(t, v.Destroy())
	_, ok = h.srv.Vehicle(v.ID())
	assert.False(t, ok)

	o, err := h.srv.CreateObject(ctx, 1337, mgl64.Vec3{})
	require.NoError(t, err)
	_, ok = h.srv.Object(o.ID())
	assert.True(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.srv.CreateObject(cancelled, 1, mgl64.Vec3{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPlayerConnected_Unknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.PlayerConnected(context.Background(), 7)
	errutil.AssertErrorCode(t, err, native.CodeEntityNotFound)
}

func TestTick_SweepsDeadEntities(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	require.NoError(t, h.engine.DestroyEntity(native.CategoryPlayer, alice.ID()))

	h.srv.Tick(context.Background())
	id, err := h.engine.CreateEntity(native.CategoryPlayer, native.MustArgs("carol"))
	require.NoError(t, err)
	require.Equal(t, alice.ID(), id, "engine reuses the id")

	carol, ok := h.srv.Player(id)
	require.True(t, ok)
	assert.NotSame(t, alice, carol)
	assert.Equal(t, "carol", carol.Name())
}

func TestBroadcast(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	h.srv.ServerFor("news").Broadcast("extra!")
	assert.Equal(t, []string{"extra!"}, h.engine.Messages(alice.ID()))
	assert.Equal(t, []string{"extra!"}, h.engine.Messages(bob.ID()))
}

func TestActorResolver(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")

	a, ok := h.srv.ActorByName("CONSOLE")
	require.True(t, ok)
	assert.Same(t, h.srv.Console(), a)

	a, ok = h.srv.ActorByID(alice.ID())
	require.True(t, ok)
	assert.Equal(t, "alice", a.Name())

	_, ok = h.srv.ActorByID(99)
	assert.False(t, ok)
	_, ok = h.srv.ActorByName("nobody")
	assert.False(t, ok)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, server.WithTickInterval(time.Millisecond))
	ran := make(chan struct{})
	var once sync.Once
	h.srv.ServerFor("demo").Schedule(func(context.Context) { once.Do(func() { close(ran) }) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("tick loop never ran the task")
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tick loop did not stop")
	}
}

func contains(out []string, want string) bool {
	for _, line := range out {
		if strings.Contains(line, want) {
			return true
		}
	}
	return false
}
