// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package plugin_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/native"
	"github.com/holomush/pluginhost/internal/native/memory"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/lua"
	"github.com/holomush/pluginhost/internal/plugin/static"
	"github.com/holomush/pluginhost/internal/server"
	"github.com/holomush/pluginhost/internal/store"
)

func copyWelcome(dst string) {
	src := filepath.Join("..", "..", "plugins", "welcome")
	entries, err := os.ReadDir(src)
	Expect(err).NotTo(HaveOccurred())
	Expect(os.MkdirAll(filepath.Join(dst, "welcome"), 0o750)).To(Succeed())
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(dst, "welcome", e.Name()), data, 0o600)).To(Succeed())
	}
}

var _ = Describe("Plugin host", Ordered, func() {
	var (
		ctx     context.Context
		engine  *memory.Engine
		srv     *server.Server
		mgr     *plugin.Manager
		kv      *store.LevelDBKVStore
		console []string
		alice   int
	)

	chat := func(line string) {
		Expect(srv.HandleChat(ctx, alice, line)).To(BeTrue())
	}

	BeforeAll(func() {
		ctx = context.Background()
		pluginsDir := GinkgoT().TempDir()
		copyWelcome(pluginsDir)

		var err error
		kv, err = store.OpenLevelDB(filepath.Join(GinkgoT().TempDir(), "kv"))
		Expect(err).NotTo(HaveOccurred())

		engine = memory.New()
		srv, err = server.New(engine, server.WithConsoleOutput(func(text string) {
			console = append(console, text)
		}))
		Expect(err).NotTo(HaveOccurred())

		statics := static.NewRegistry()
		mgr = plugin.NewManager(append(srv.ManagerOptions(),
			plugin.WithStorage(kv),
			plugin.WithPluginsDir(pluginsDir),
			plugin.WithIsolator(plugin.TypeStatic, statics),
			plugin.WithIsolator(plugin.TypeLua, lua.NewIsolator()),
		)...)
		statics.MustAdd(srv.AdminPlugin(mgr))

		Expect(mgr.LoadAll(ctx, statics.Paths()...)).To(Succeed())

		alice, err = engine.CreateEntity(native.CategoryPlayer, native.MustArgs("alice"))
		Expect(err).NotTo(HaveOccurred())
		_, err = srv.PlayerConnected(ctx, alice)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		mgr.Shutdown(ctx)
		Expect(kv.Close()).To(Succeed())
	})

	It("starts discovered and compiled-in plugins", func() {
		inst, ok := mgr.GetPlugin("welcome")
		Expect(ok).To(BeTrue())
		Expect(inst.State()).To(Equal(plugin.StateStarted))
		Expect(mgr.Active()).To(HaveLen(2))
		Expect(mgr.Failures()).To(BeEmpty())
	})

	It("routes chat commands into Lua", func() {
		chat("/welcome alice")
		Expect(engine.Messages(alice)).To(ContainElements("Welcome, alice! (1)", "Greeted alice"))
	})

	It("lets the console use permissioned plugin commands", func() {
		outcome, err := srv.HandleConsole(ctx, "setgreeting Howdy")
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(command.OutcomeContinue))
		Expect(console).To(ContainElement("Greeting set to Howdy"))
	})

	It("keeps plugin storage across a restart", func() {
		Expect(mgr.Restart(ctx, "welcome")).To(Succeed())

		chat("/greet alice")
		Expect(engine.Messages(alice)).To(ContainElement("Howdy, alice! (2)"))
	})

	It("drops commands of a stopped plugin", func() {
		Expect(mgr.Stop(ctx, "welcome", false)).To(Succeed())

		chat("/welcome alice")
		msgs := engine.Messages(alice)
		Expect(msgs[len(msgs)-1]).To(Equal("Unknown command. Try /help."))
	})

	It("restarts a stopped plugin from its directory", func() {
		_, err := srv.HandleConsole(ctx, "plugin start welcome")
		Expect(err).NotTo(HaveOccurred())
		Expect(console).To(ContainElement("Plugin welcome: start done."))

		chat("/welcome alice")
		Expect(engine.Messages(alice)).To(ContainElement("Howdy, alice! (3)"))
	})
})
