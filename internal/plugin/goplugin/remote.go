// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package goplugin

import (
	"context"
	"reflect"
	"time"

	"github.com/samber/oops"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/native"
	"github.com/holomush/pluginhost/internal/plugin"
	pluginv1 "github.com/holomush/pluginhost/internal/proto/plugin/v1"
)

// remote is the plugin object of one plugin process.
type remote struct {
	id      string
	client  pluginv1.PluginClient
	timeout time.Duration
}

var _ plugin.Plugin = (*remote)(nil)

func (r *remote) errb(rpc string) oops.OopsErrorBuilder {
	return oops.In("goplugin").With("plugin", r.id).With("rpc", rpc)
}

// Attach asks the process for its command table and declares it.
func (r *remote) Attach(env *plugin.Env) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	raw, err := r.client.Describe(ctx, &emptypb.Empty{})
	if err != nil {
		return r.errb("Describe").Wrap(err)
	}
	var desc pluginv1.Description
	if err := pluginv1.Decode(raw, &desc); err != nil {
		return r.errb("Describe").Wrap(err)
	}

	decls := make([]command.Declaration, 0, len(desc.Commands))
	for _, spec := range desc.Commands {
		decl, err := r.declaration(spec)
		if err != nil {
			return err
		}
		decls = append(decls, decl)
	}
	return env.Commands.Register(decls...)
}

func (r *remote) OnStart(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.client.Start(ctx, &emptypb.Empty{}); err != nil {
		return r.errb("Start").Wrap(err)
	}
	return nil
}

func (r *remote) OnStop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.client.Stop(ctx, &emptypb.Empty{}); err != nil {
		return r.errb("Stop").Wrap(err)
	}
	return nil
}

func (r *remote) declaration(spec pluginv1.CommandSpec) (command.Declaration, error) {
	decl := command.Declaration{
		Name:        spec.Name,
		Description: spec.Description,
		Permission:  spec.Permission,
		Aliases:     spec.Aliases,
		Handler:     r.handler(spec.Name),
	}
	for i, ps := range spec.Params {
		typ, ok := command.TypeByName(ps.Type)
		if !ok {
			return command.Declaration{}, r.errb("Describe").
				With("command", spec.Name).
				With("param", i).
				Errorf("unknown parameter type %q", ps.Type)
		}
		p := command.Param{
			Name:        ps.Name,
			Type:        typ,
			Optional:    ps.Optional,
			Greedy:      ps.Greedy,
			Description: ps.Description,
		}
		if ps.Default != nil {
			p.Optional = true
			p.Default = convertDefault(ps.Default, typ)
		}
		decl.Params = append(decl.Params, p)
	}
	return decl, nil
}

// convertDefault converts a JSON default to the parameter type.
func convertDefault(v any, typ reflect.Type) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String && rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ).Interface()
	}
	return v
}

// handler forwards a command to the process and delivers the replies to
// the invoking actor.
func (r *remote) handler(name string) command.Handler {
	return func(ctx context.Context, actor command.Actor, args []any) (any, error) {
		values := make([]any, len(args))
		for i, a := range args {
			switch v := a.(type) {
			case nil:
				values[i] = ""
			case command.Actor:
				values[i] = v.Name()
			case command.Char:
				values[i] = string(v)
			default:
				values[i] = v
			}
		}
		packed, err := native.NewArgs(values...)
		if err != nil {
			return nil, err
		}

		req := pluginv1.InvokeRequest{Command: name, Args: packed.Values()}
		if actor != nil {
			req.Actor = actor.Name()
		}
		in, err := pluginv1.Encode(req)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		out, err := r.client.Invoke(ctx, in)
		if err != nil {
			return nil, r.errb("Invoke").With("command", name).Wrap(err)
		}
		var resp pluginv1.InvokeResponse
		if err := pluginv1.Decode(out, &resp); err != nil {
			return nil, r.errb("Invoke").With("command", name).Wrap(err)
		}
		if actor != nil {
			for _, msg := range resp.Messages {
				actor.SendMessage(msg)
			}
		}
		return resp.Result, nil
	}
}
