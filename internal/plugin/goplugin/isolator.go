// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package goplugin isolates binary plugins in their own OS process using
// HashiCorp's go-plugin over gRPC. Unloading kills the process.
package goplugin

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/pluginhost/internal/plugin"
	pluginv1 "github.com/holomush/pluginhost/internal/proto/plugin/v1"
	"github.com/holomush/pluginhost/pkg/pluginsdk"
)

// DefaultCallTimeout bounds a single RPC to a plugin process.
const DefaultCallTimeout = 5 * time.Second

// PluginClient wraps go-plugin client for testability.
type PluginClient interface {
	// Client starts the process and returns the gRPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a go-plugin client for the executable.
func (DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  pluginsdk.HandshakeConfig,
		Plugins:          pluginsdk.PluginMap(nil),
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath is confined to the plugin directory
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolGRPC},
	})
}

// Isolator loads binary plugins.
type Isolator struct {
	factory     ClientFactory
	timeout     time.Duration
	retries     uint64
	retryPeriod time.Duration
}

var _ plugin.Isolator = (*Isolator)(nil)

// Option configures an Isolator.
type Option func(*Isolator)

// WithClientFactory replaces the go-plugin client factory.
func WithClientFactory(f ClientFactory) Option {
	return func(i *Isolator) { i.factory = f }
}

// WithCallTimeout bounds every RPC to the plugin.
func WithCallTimeout(d time.Duration) Option {
	return func(i *Isolator) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithConnectRetries sets how often a failed process start is retried
// and the base of the exponential backoff between attempts.
func WithConnectRetries(n uint64, base time.Duration) Option {
	return func(i *Isolator) {
		i.retries = n
		if base > 0 {
			i.retryPeriod = base
		}
	}
}

// NewIsolator creates a binary plugin isolator.
func NewIsolator(opts ...Option) *Isolator {
	i := &Isolator{
		factory:     DefaultClientFactory{},
		timeout:     DefaultCallTimeout,
		retries:     2,
		retryPeriod: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Load starts the plugin process named by the descriptor in dir and
// connects to it.
func (i *Isolator) Load(ctx context.Context, dir string) (plugin.Module, error) {
	desc, err := plugin.ReadDescriptor(dir)
	if err != nil {
		return nil, err
	}
	errb := oops.In("goplugin").With("path", dir).With("plugin", desc.ID)
	if desc.Type != plugin.TypeBinary {
		return nil, errb.Errorf("plugin %s has type %s, not binary", desc.ID, desc.Type)
	}

	execPath, err := executablePath(dir, desc.Binary.Executable)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	info, err := os.Stat(execPath)
	if err != nil {
		return nil, errb.With("executable", execPath).Hint("build the plugin executable first").Wrapf(err, "plugin executable not found")
	}
	if info.IsDir() {
		return nil, errb.With("executable", execPath).Errorf("plugin executable %s is a directory", execPath)
	}

	client, proto, err := i.connect(ctx, execPath)
	if err != nil {
		return nil, errb.With("executable", execPath).Wrapf(err, "connect to plugin")
	}
	raw, err := proto.Dispense(pluginsdk.PluginName)
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "dispense plugin")
	}
	pc, ok := raw.(pluginv1.PluginClient)
	if !ok {
		client.Kill()
		return nil, errb.Errorf("plugin %s does not serve %s", desc.ID, pluginv1.ServiceName)
	}

	return &module{
		desc:   desc,
		client: client,
		rt:     &remote{id: desc.ID, client: pc, timeout: i.timeout},
	}, nil
}

// connect starts the process, retrying with a fresh client after each
// failed attempt.
func (i *Isolator) connect(ctx context.Context, execPath string) (PluginClient, hashiplug.ClientProtocol, error) {
	var (
		client PluginClient
		proto  hashiplug.ClientProtocol
	)
	backoff := retry.WithMaxRetries(i.retries, retry.NewExponential(i.retryPeriod))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		c := i.factory.NewClient(execPath)
		p, err := c.Client()
		if err != nil {
			c.Kill()
			return retry.RetryableError(err)
		}
		client, proto = c, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return client, proto, nil
}

func executablePath(dir, exe string) (string, error) {
	if filepath.IsAbs(exe) {
		return "", oops.With("executable", exe).Errorf("executable must be relative to the plugin directory")
	}
	path := filepath.Join(dir, exe)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", oops.With("executable", exe).Errorf("executable escapes the plugin directory")
	}
	return path, nil
}

type module struct {
	desc   *plugin.Descriptor
	client PluginClient
	rt     *remote
}

func (m *module) Exposed() plugin.Exposed {
	return plugin.Exposed{
		Descriptor: m.desc,
		Main:       func() (plugin.Plugin, error) { return m.rt, nil },
	}
}

func (m *module) Unload(context.Context) error {
	m.client.Kill()
	return nil
}
