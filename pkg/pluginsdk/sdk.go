// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pluginsdk provides the SDK for building binary plugins.
//
// A binary plugin is a separate executable that serves commands to the
// host over gRPC using the HashiCorp go-plugin framework.
//
// Example usage:
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/holomush/pluginhost/pkg/pluginsdk"
//	)
//
//	type Echo struct{}
//
//	func (Echo) Commands() []pluginsdk.Command {
//		return []pluginsdk.Command{{
//			Name:   "echo",
//			Params: []pluginsdk.Param{{Name: "text", Greedy: true}},
//			Handler: func(_ context.Context, call *pluginsdk.Call) (any, error) {
//				call.Reply(call.Args.String(0))
//				return nil, nil
//			},
//		}}
//	}
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: Echo{}})
//	}
package pluginsdk

import (
	"context"
	"errors"
	"fmt"

	hashiplug "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"

	"github.com/holomush/pluginhost/internal/native"
	pluginv1 "github.com/holomush/pluginhost/internal/proto/plugin/v1"
)

// PluginName is the key under which the plugin is dispensed.
const PluginName = "plugin"

// HandshakeConfig is the go-plugin handshake configuration.
// Both host and plugins must use the same values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PLUGINHOST_PLUGIN",
	MagicCookieValue: "pluginhost-v1",
}

// Param declares one command parameter.
type Param = pluginv1.ParamSpec

// Command is one command served by the plugin.
type Command struct {
	Name        string
	Description string
	Permission  string
	Aliases     []string
	Params      []Param
	Handler     func(ctx context.Context, call *Call) (any, error)
}

// Plugin is implemented by binary plugins. Implement Starter or Stopper
// to be told about lifecycle changes.
type Plugin interface {
	Commands() []Command
}

// Starter is called when the host starts the plugin.
type Starter interface {
	OnStart(ctx context.Context) error
}

// Stopper is called when the host stops the plugin.
type Stopper interface {
	OnStop(ctx context.Context) error
}

// Call is one command invocation.
type Call struct {
	Command string
	// Actor is the name of the invoking actor.
	Actor string
	// Args holds one value per declared parameter. Player parameters
	// arrive as player names.
	Args    native.Args
	replies []string
}

// Reply sends text to the invoking actor once the call returns.
func (c *Call) Reply(text string) {
	c.replies = append(c.replies, text)
}

// Replyf is Reply with formatting.
func (c *Call) Replyf(format string, args ...any) {
	c.Reply(fmt.Sprintf(format, args...))
}

// ServeConfig configures the plugin server.
type ServeConfig struct {
	// Plugin is required; Serve panics if it is nil or declares an
	// invalid command table.
	Plugin Plugin
}

// Serve starts the plugin server. It is called from main and blocks.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.Plugin == nil {
		panic("pluginsdk: config.Plugin cannot be nil")
	}
	srv, err := NewServer(config.Plugin)
	if err != nil {
		panic(err)
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(srv),
		GRPCServer:      hashiplug.DefaultGRPCServer,
	})
}

// PluginMap returns the go-plugin plugin set. The host passes nil.
func PluginMap(impl pluginv1.PluginServer) map[string]hashiplug.Plugin {
	return map[string]hashiplug.Plugin{
		PluginName: &GRPCPlugin{Impl: impl},
	}
}

// GRPCPlugin implements go-plugin's Plugin interface for gRPC.
type GRPCPlugin struct {
	hashiplug.NetRPCUnsupportedPlugin
	// Impl is set on the plugin side only.
	Impl pluginv1.PluginServer
}

// GRPCServer registers the plugin server (called by plugin process).
func (p *GRPCPlugin) GRPCServer(_ *hashiplug.GRPCBroker, s *grpc.Server) error {
	if p.Impl == nil {
		return errors.New("pluginsdk: plugin implementation is nil")
	}
	pluginv1.RegisterPluginServer(s, p.Impl)
	return nil
}

// GRPCClient returns a plugin client (called by host process).
func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *hashiplug.GRPCBroker, c *grpc.ClientConn) (any, error) {
	return pluginv1.NewPluginClient(c), nil
}
