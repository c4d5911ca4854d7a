// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/pluginhost/pkg/errutil"
)

var tracer = otel.Tracer("pluginhost/command")

type hookEntry struct {
	owner string
	hook  Hook
}

// Dispatcher resolves, converts and invokes commands. Dispatch may run
// concurrently; no lock is held while a handler or hook runs.
type Dispatcher struct {
	registry *Registry
	chain    *Chain
	auth     Authorizer
	limiter  *RateLimiter
	logger   *slog.Logger

	mu        sync.RWMutex
	hooks     []hookEntry
	listeners []FailureListener
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithAuthorizer enables permission checks. Without one, every
// permission is granted.
func WithAuthorizer(a Authorizer) DispatcherOption {
	return func(d *Dispatcher) { d.auth = a }
}

// WithRateLimiter enables per-actor rate limiting.
func WithRateLimiter(rl *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = rl }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a dispatcher over a registry and converter chain.
func NewDispatcher(registry *Registry, chain *Chain, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if chain == nil {
		return nil, ErrNilChain
	}
	d := &Dispatcher{
		registry: registry,
		chain:    chain,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// AddHook installs a pre-dispatch hook on behalf of owner.
func (d *Dispatcher) AddHook(owner string, h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hookEntry{owner: owner, hook: h})
}

// RemoveHooks drops every hook installed by owner.
func (d *Dispatcher) RemoveHooks(owner string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.hooks[:0]
	for _, h := range d.hooks {
		if h.owner != owner {
			kept = append(kept, h)
		}
	}
	d.hooks = kept
}

// OnFailure subscribes to failure events.
func (d *Dispatcher) OnFailure(l FailureListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Execute dispatches a line whose first token names the command.
func (d *Dispatcher) Execute(ctx context.Context, line string, actor Actor) (Outcome, error) {
	var name string
	if tokens := Tokenize(line); len(tokens) > 0 {
		name = tokens[0]
	}
	return d.Dispatch(ctx, name, line, actor)
}

// Dispatch runs the command name with the arguments in line. The first
// token of line is the command as typed and is not an argument.
func (d *Dispatcher) Dispatch(ctx context.Context, name, line string, actor Actor) (outcome Outcome, err error) {
	rec := newMetricsRecorder()
	ctx, span := tracer.Start(ctx, "command.dispatch",
		trace.WithAttributes(attribute.String("command.name", name)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("command.outcome", outcome.String()))
		span.End()
		rec.record()
	}()

	decl, ok := d.registry.Get(name)
	if !ok {
		rec.status = StatusNotFound
		return d.fail(ctx, Failure{Kind: NoCommand, Command: name, Line: line, Actor: actor, Err: ErrNoCommand(name)})
	}
	rec.command, rec.owner = decl.Name, decl.Owner
	span.SetAttributes(attribute.String("command.owner", decl.Owner))

	if decl.ActorType != nil && (actor == nil || !reflect.TypeOf(actor).AssignableTo(decl.ActorType)) {
		rec.status = StatusWrongActor
		return d.fail(ctx, Failure{Kind: WrongActor, Command: decl.Name, Line: line, Actor: actor,
			Err: ErrWrongActor(decl.Name, decl.ActorType.String())})
	}

	if decl.Permission != "" && d.auth != nil && !d.auth.Allowed(actor, decl.Permission) {
		rec.status = StatusDenied
		return d.fail(ctx, Failure{Kind: NoPermissions, Command: decl.Name, Line: line, Actor: actor,
			Err: ErrNoPermission(decl.Name, decl.Permission)})
	}

	if d.limiter != nil && actor != nil && (d.auth == nil || !d.auth.Allowed(actor, PermissionRateLimitBypass)) {
		if allowed, cooldown := d.limiter.Allow(actor.Name()); !allowed {
			rec.status = StatusThrottled
			return d.fail(ctx, Failure{Kind: RateLimited, Command: decl.Name, Line: line, Actor: actor,
				Err: ErrRateLimited(cooldown)})
		}
	}

	tokens := Tokenize(line)
	var raw []string
	if len(tokens) > 0 {
		raw = tokens[1:]
	}

	if required := decl.Required(); len(raw) < required {
		rec.status = StatusBadArgs
		return d.fail(ctx, Failure{Kind: TooFewArgs, Command: decl.Name, Line: line, Actor: actor,
			Err: ErrTooFewArgs(decl.Name, decl.Usage(), len(raw), required)})
	}

	args, err := d.convert(decl, raw)
	if err != nil {
		rec.status = StatusBadArgs
		d.logger.WarnContext(ctx, "command argument rejected",
			"command", decl.Name,
			"line", line,
			"actor", actorName(actor),
			"error", err)
		return d.fail(ctx, Failure{Kind: BadArgument, Command: decl.Name, Line: line, Actor: actor, Err: err})
	}

	inv := &Invocation{Declaration: decl, Actor: actor, Line: line, Args: args}
	if !d.runHooks(ctx, inv) {
		rec.status = StatusVetoed
		return OutcomeVetoed, nil
	}

	result, err := d.invoke(ctx, inv)
	if err != nil {
		rec.status = StatusError
		errutil.LogErrorContext(ctx, d.logger, "command handler failed", err,
			"command", decl.Name,
			"owner", decl.Owner,
			"line", line,
			"actor", actorName(actor))
		return d.fail(ctx, Failure{Kind: HandlerError, Command: decl.Name, Line: line, Actor: actor, Err: err})
	}

	if b, ok := result.(bool); ok && !b {
		rec.status = StatusCancel
		return OutcomeCancel, nil
	}
	rec.status = StatusContinue
	return OutcomeContinue, nil
}

func (d *Dispatcher) convert(decl *Declaration, raw []string) ([]any, error) {
	params := decl.Params
	if n := len(params); n > 0 && params[n-1].Greedy && len(raw) > n {
		raw = append(raw[:n-1:n-1], strings.Join(raw[n-1:], " "))
	}

	args := make([]any, len(params))
	for i, p := range params {
		if i >= len(raw) {
			args[i] = p.defaultFor()
			continue
		}
		v, err := d.chain.Handle(raw[i], p.Type)
		if err != nil {
			return nil, oops.With("param", p.Name).With("position", i+1).Wrap(err)
		}
		args[i] = v
	}
	return args, nil
}

func (d *Dispatcher) runHooks(ctx context.Context, inv *Invocation) bool {
	d.mu.RLock()
	hooks := make([]hookEntry, len(d.hooks))
	copy(hooks, d.hooks)
	d.mu.RUnlock()

	for _, h := range hooks {
		if !d.safeHook(ctx, h, inv) {
			return false
		}
	}
	return true
}

// safeHook runs one hook. A panicking hook is logged and treated as
// allowing the command.
func (d *Dispatcher) safeHook(ctx context.Context, h hookEntry, inv *Invocation) (allow bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "command hook panicked",
				"owner", h.owner,
				"command", inv.Declaration.Name,
				"panic", fmt.Sprint(r))
			allow = true
		}
	}()
	return h.hook(ctx, inv)
}

func (d *Dispatcher) invoke(ctx context.Context, inv *Invocation) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code(CodeHandlerFailed).
				With("command", inv.Declaration.Name).
				With("owner", inv.Declaration.Owner).
				Errorf("handler panicked: %v", r)
		}
	}()
	return inv.Declaration.Handler(ctx, inv.Actor, inv.Args)
}

func (d *Dispatcher) fail(ctx context.Context, f Failure) (Outcome, error) {
	d.mu.RLock()
	listeners := make([]FailureListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, l := range listeners {
		d.notify(ctx, l, f)
	}
	return OutcomeFailed, f.Err
}

func (d *Dispatcher) notify(ctx context.Context, l FailureListener, f Failure) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "failure listener panicked", "panic", fmt.Sprint(r))
		}
	}()
	l(ctx, f)
}

func actorName(a Actor) string {
	if a == nil {
		return ""
	}
	return a.Name()
}
