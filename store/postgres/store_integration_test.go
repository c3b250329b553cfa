//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	goGuard "github.com/MrEthical07/goGuard"
	pgstore "github.com/MrEthical07/goGuard/store/postgres"
)

// setupPostgresStore starts a PostgreSQL container, migrates it and opens a store.
func setupPostgresStore() (*pgstore.Store, *pgstore.Migrator, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("goguard_test"),
		postgres.WithUsername("goguard"),
		postgres.WithPassword("goguard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, nil, err
	}

	migrator, err := pgstore.NewMigrator(connStr)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, nil, err
	}

	store, err := pgstore.Open(ctx, connStr)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		store.Close()
		_ = migrator.Close()
		_ = container.Terminate(ctx)
	}
	return store, migrator, cleanup, nil
}

func integrationAccount(username, email string) goGuard.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return goGuard.Account{
		ID:                "01J3" + username,
		Username:          username,
		Email:             email,
		FirstName:         "Carla",
		LastName:          "Vargas",
		Branch:            "Central",
		City:              "Tarija",
		JobTitle:          "Contadora",
		Mobile:            "72222222",
		Phone:             "4666666",
		Address:           "Calle Sucre 8",
		PasswordHash:      "$2a$04$hash",
		PasswordExpiresAt: now.Add(90 * 24 * time.Hour),
		Roles:             []goGuard.Role{goGuard.RoleContabilidad, goGuard.RoleJefe},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

var _ = Describe("Postgres account store", func() {
	var (
		store    *pgstore.Store
		migrator *pgstore.Migrator
		cleanup  func()
		ctx      context.Context
	)

	BeforeEach(func() {
		var err error
		store, migrator, cleanup, err = setupPostgresStore()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		cleanup()
	})

	It("reports the applied schema version", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeNumerically(">", 0))
		Expect(dirty).To(BeFalse())
	})

	It("round-trips an account with ordered roles", func() {
		created, err := store.CreateAccount(ctx, integrationAccount("cvargas", "cvargas@example.com"))
		Expect(err).NotTo(HaveOccurred())
		Expect(created.Version).To(Equal(int64(1)))

		got, err := store.GetAccount(ctx, "cvargas")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Roles).To(Equal([]goGuard.Role{goGuard.RoleContabilidad, goGuard.RoleJefe}))
		Expect(got.PasswordExpiresAt).To(BeTemporally("==", created.PasswordExpiresAt))
	})

	It("maps unique violations to conflicts", func() {
		_, err := store.CreateAccount(ctx, integrationAccount("cvargas", "cvargas@example.com"))
		Expect(err).NotTo(HaveOccurred())

		dup := integrationAccount("cvargas", "other@example.com")
		dup.ID = "01J3other"
		_, err = store.CreateAccount(ctx, dup)
		Expect(err).To(MatchError(goGuard.ErrAccountExists))

		dup = integrationAccount("otra", "CVARGAS@example.com")
		_, err = store.CreateAccount(ctx, dup)
		Expect(err).To(MatchError(goGuard.ErrEmailExists))
	})

	It("serializes concurrent updates with row locks", func() {
		_, err := store.CreateAccount(ctx, integrationAccount("cvargas", "cvargas@example.com"))
		Expect(err).NotTo(HaveOccurred())

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := store.UpdateAccount(ctx, "cvargas", func(a *goGuard.Account) error {
					a.FailedAttempts++
					return nil
				})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		got, err := store.GetAccount(ctx, "cvargas")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.FailedAttempts).To(Equal(workers))
		Expect(got.Version).To(Equal(int64(workers + 1)))
	})

	It("persists history additions and trims", func() {
		_, err := store.CreateAccount(ctx, integrationAccount("cvargas", "cvargas@example.com"))
		Expect(err).NotTo(HaveOccurred())

		stamp := time.Now().UTC().Truncate(time.Microsecond)
		for _, id := range []string{"h1", "h2", "h3"} {
			_, err := store.UpdateAccount(ctx, "cvargas", func(a *goGuard.Account) error {
				a.PasswordHistory = append(a.PasswordHistory, goGuard.ArchivedPassword{ID: id, Hash: "$2a$04$" + id, CreatedAt: stamp})
				if len(a.PasswordHistory) > 2 {
					a.PasswordHistory = a.PasswordHistory[len(a.PasswordHistory)-2:]
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			stamp = stamp.Add(time.Second)
		}

		got, err := store.GetAccount(ctx, "cvargas")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHistory).To(HaveLen(2))
		Expect(got.PasswordHistory[0].ID).To(Equal("h2"))
		Expect(got.PasswordHistory[1].ID).To(Equal("h3"))
	})

	It("returns not found for unknown accounts", func() {
		_, err := store.GetAccount(ctx, "nadie")
		Expect(err).To(MatchError(goGuard.ErrAccountNotFound))
	})
})
