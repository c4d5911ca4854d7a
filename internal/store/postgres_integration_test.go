// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/pluginhost/internal/store"
)

var _ = Describe("PostgresKVStore", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		kv        *store.PostgresKVStore
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("pluginhost_test"),
			postgres.WithUsername("pluginhost"),
			postgres.WithPassword("pluginhost"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if kv != nil {
			Expect(kv.Close()).To(Succeed())
		}
		Expect(container.Terminate(ctx)).To(Succeed())
	})

	It("reports a missing schema before migrating", func() {
		var err error
		kv, err = store.OpenPostgres(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())

		_, err = kv.Get(ctx, "welcome", "greeting")
		Expect(err).To(HaveOccurred())
	})

	It("migrates up", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		Expect(migrator.Up()).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeNumerically(">", 0))
		Expect(dirty).To(BeFalse())

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})

	It("stores and lists values per namespace", func() {
		Expect(kv.Set(ctx, "welcome", "greeting", []byte("hi"))).To(Succeed())
		Expect(kv.Set(ctx, "welcome", "greeting", []byte("hello"))).To(Succeed())
		Expect(kv.Set(ctx, "welcome", "count", []byte("1"))).To(Succeed())
		Expect(kv.Set(ctx, "echo", "greeting", []byte("other"))).To(Succeed())

		v, err := kv.Get(ctx, "welcome", "greeting")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]byte("hello")))

		keys, err := kv.Keys(ctx, "welcome")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]string{"count", "greeting"}))
	})

	It("deletes values", func() {
		Expect(kv.Delete(ctx, "welcome", "greeting")).To(Succeed())
		v, err := kv.Get(ctx, "welcome", "greeting")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNil())
	})
})
