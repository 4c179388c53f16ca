// Package testenv starts the Postgres and Redis containers used by the
// integration tests.
package testenv

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/redis"
)

// EnvIntegration enables the container backed tests when set to 1.
const EnvIntegration = "FERN_INTEGRATION"

// SkipUnlessIntegration skips t in short mode or when integration tests
// are not enabled.
func SkipUnlessIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv(EnvIntegration) != "1" {
		t.Skipf("Skipping integration test; set %s=1 to run", EnvIntegration)
	}
}

// ServiceManager manages the containers of one test run
type ServiceManager struct {
	ctx context.Context

	postgres testcontainers.Container
	redis    testcontainers.Container

	Postgres database.Config
	Redis    redis.Config
}

func NewServiceManager(ctx context.Context) *ServiceManager {
	return &ServiceManager{
		ctx: ctx,
	}
}

// StartPostgres starts PostgreSQL and fills in Postgres.
func (sm *ServiceManager) StartPostgres() error {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "fern",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(sm.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("failed to start postgres: %w", err)
	}
	sm.postgres = container

	host, err := container.Host(sm.ctx)
	if err != nil {
		return err
	}
	mapped, err := container.MappedPort(sm.ctx, "5432/tcp")
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return err
	}

	sm.Postgres = database.Config{
		Host:     host,
		Port:     port,
		User:     "user",
		Password: "password",
		Name:     "fern",
		SSLMode:  "disable",
	}
	return nil
}

// StartRedis starts Redis and fills in Redis.
func (sm *ServiceManager) StartRedis() error {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(sm.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("failed to start redis: %w", err)
	}
	sm.redis = container

	host, err := container.Host(sm.ctx)
	if err != nil {
		return err
	}
	mapped, err := container.MappedPort(sm.ctx, "6379/tcp")
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return err
	}

	sm.Redis = redis.Config{Host: host, Port: port}
	return nil
}

// Stop terminates every started container.
func (sm *ServiceManager) Stop() error {
	var firstErr error
	for _, c := range []testcontainers.Container{sm.redis, sm.postgres} {
		if c == nil {
			continue
		}
		if err := c.Terminate(sm.ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
