// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/config"
	"github.com/holomush/pluginhost/internal/console"
	"github.com/holomush/pluginhost/internal/logging"
	"github.com/holomush/pluginhost/internal/native/memory"
	"github.com/holomush/pluginhost/internal/observability"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/capability"
	"github.com/holomush/pluginhost/internal/plugin/goplugin"
	"github.com/holomush/pluginhost/internal/plugin/lua"
	"github.com/holomush/pluginhost/internal/plugin/static"
	"github.com/holomush/pluginhost/internal/server"
	"github.com/holomush/pluginhost/internal/store"
	"github.com/holomush/pluginhost/internal/xdg"
	"github.com/holomush/pluginhost/pkg/errutil"
)

// shutdownTimeout bounds plugin shutdown and the metrics server stop.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin host",
		Long: `Run the plugin host against the built-in simulated engine. Plugins
are loaded from the plugins directory and the compiled-in set, and the
terminal becomes the server console.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// loadConfig reads --config, or the default config file when it exists,
// overlaid with fs.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	path := configFile
	if path == "" {
		if def, err := xdg.ConfigFile(); err == nil && fileExists(def) {
			path = def
		}
	}
	cfg, err := config.Load(path, fs)
	if err != nil {
		return nil, oops.With("config", path).Wrapf(err, "invalid configuration")
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// runServe runs the host until the context is cancelled, a termination
// signal arrives or the console runs shutdown.
func runServe(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("pluginhost", version, cfg.Log.Format, level)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	kv, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			errutil.LogError(logger, "failed to close storage", closeErr)
		}
	}()
	logger.Info("storage ready", "backend", cfg.Storage.Backend)

	var ready atomic.Bool
	var mgr *plugin.Manager
	var obsServer *observability.Server
	var reg prometheus.Registerer
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, ready.Load,
			observability.WithVersion(version),
			observability.WithStatus(func() any { return statusOf(mgr) }),
			observability.WithCollectors(command.RegisterMetrics, plugin.RegisterMetrics, server.RegisterMetrics),
		)
		reg = obsServer.Registerer()
	}

	grants, err := capability.FromMap(cfg.Permissions)
	if err != nil {
		return oops.With("section", "permissions").Wrapf(err, "invalid permissions")
	}

	engine := memory.New()
	con := console.New(in, out)

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTickInterval(cfg.Server.TickInterval),
		server.WithChatPrefix(cfg.Server.ChatPrefix),
		server.WithAuthorizer(grants),
		server.WithConsoleOutput(con.Print),
		server.WithAliases(cfg.Server.Aliases),
	}
	if cfg.Server.RateLimit.Burst > 0 {
		opts = append(opts, server.WithRateLimiter(command.NewRateLimiter(command.RateLimiterConfig{
			BurstCapacity: cfg.Server.RateLimit.Burst,
			SustainedRate: cfg.Server.RateLimit.Rate,
		}, reg)))
	}
	srv, err := server.New(engine, opts...)
	if err != nil {
		return err
	}
	engine.OnMessage(func(playerID int, text string) {
		if p, ok := srv.Player(playerID); ok {
			con.Note(fmt.Sprintf("-> %s: %s", p.Name(), text))
		}
	})

	statics := static.NewRegistry()
	mopts := append(srv.ManagerOptions(),
		plugin.WithLogger(logger),
		plugin.WithStorage(kv),
		plugin.WithIsolator(plugin.TypeStatic, statics),
		plugin.WithIsolator(plugin.TypeLua, lua.NewIsolator(
			lua.WithCallTimeout(cfg.Plugins.CallTimeout),
			lua.WithCallStackSize(cfg.Plugins.LuaStackSize),
		)),
		plugin.WithIsolator(plugin.TypeBinary, goplugin.NewIsolator(goplugin.WithCallTimeout(cfg.Plugins.CallTimeout))),
	)
	if cfg.Plugins.Autoload {
		mopts = append(mopts, plugin.WithPluginsDir(cfg.Plugins.Dir))
	}
	mgr = plugin.NewManager(mopts...)

	statics.MustAdd(srv.AdminPlugin(mgr))
	statics.MustAdd(sessionPlugin(srv, engine, cancel))

	if err := mgr.LoadAll(ctx, staticPaths(logger, statics, cfg.Plugins.Static)...); err != nil {
		return err
	}
	ready.Store(true)

	if obsServer != nil {
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			shutdownPlugins(mgr)
			return oops.With("addr", cfg.Metrics.Addr).Wrapf(startErr, "failed to start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	con.Banner("pluginhost " + version)
	con.Note(fmt.Sprintf("%d plugins started, %d failed. Type help for commands.",
		len(mgr.Active()), len(mgr.Failures())))

	// A blocked terminal read cannot be interrupted, so shutdown does not
	// wait for the console goroutine.
	go func() {
		if runErr := con.Run(ctx, srv.HandleConsole); runErr != nil {
			errutil.LogError(logger, "console stopped", runErr)
		}
	}()

	logger.Info("pluginhost ready", "plugins", len(mgr.Active()), "tick", cfg.Server.TickInterval)
	runErr := srv.Run(ctx)

	logger.Info("shutting down...")
	shutdownPlugins(mgr)

	if obsServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := obsServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

func shutdownPlugins(mgr *plugin.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	mgr.Shutdown(ctx)
}

// staticPaths returns the load paths of the compiled-in plugins named in
// want, or of all of them when want is empty. The admin and session
// plugins are always included.
func staticPaths(logger *slog.Logger, statics *static.Registry, want []string) []string {
	ids := statics.IDs()
	if len(want) == 0 {
		return statics.Paths()
	}
	paths := []string{plugin.StaticPath(server.AdminID), plugin.StaticPath(SessionID)}
	for _, id := range want {
		if id == server.AdminID || id == SessionID {
			continue
		}
		if !slices.Contains(ids, id) {
			logger.Warn("unknown compiled-in plugin", "plugin", id)
			continue
		}
		paths = append(paths, plugin.StaticPath(id))
	}
	return paths
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (store.KVStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryKVStore(), nil
	case config.BackendLevelDB:
		if err := xdg.EnsureDir(cfg.Path); err != nil {
			return nil, err
		}
		return store.OpenLevelDB(cfg.Path)
	case config.BackendPostgres:
		return store.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, oops.Code(config.CodeInvalid).With("backend", cfg.Backend).Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// monitorServerErrors cancels the context when a server reports an error.
// It exits when either an error is received, the channel is closed, or the
// context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
