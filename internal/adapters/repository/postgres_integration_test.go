//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/okian/rollcall/internal/domain/model"
)

func setupPostgres(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "rollcall",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return "", func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/rollcall?sslmode=disable", host, port.Port())
	return dsn, func() { _ = container.Terminate(ctx) }
}

func TestPostgresIntegration(t *testing.T) {
	dsn, cleanup := setupPostgres(t)
	if dsn == "" {
		return
	}
	defer cleanup()
	ctx := context.Background()

	t.Run("ledger store", func(t *testing.T) {
		s, err := OpenSQLStore(ctx, "postgres", dsn)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer s.Close()
		testLedgerStore(t, s)
	})

	t.Run("embedding cache", func(t *testing.T) {
		c, err := OpenPGVectorCache(ctx, dsn)
		if err != nil {
			t.Fatalf("open cache: %v", err)
		}
		defer c.Close()

		if err := c.Put(ctx, "A", "d1", model.Embedding{0.5, 0.25, 1}); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, ok, err := c.Get(ctx, "A", "d1")
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		if len(got) != 3 || got[1] != 0.25 {
			t.Errorf("unexpected embedding %v", got)
		}

		if err := c.Put(ctx, "A", "d2", model.Embedding{1, 1}); err != nil {
			t.Fatalf("replace: %v", err)
		}
		if _, ok, _ := c.Get(ctx, "A", "d1"); ok {
			t.Error("old digest must miss after replacement")
		}
		if n, err := c.Count(ctx); err != nil || n != 1 {
			t.Errorf("expected one row, got %d (%v)", n, err)
		}
	})
}
