//go:build integration

package integration

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// backendEnabled reports whether name is selected by INTEGRATION_BACKEND,
// which may be "all" (default) or a comma-separated list such as
// "redis,postgres".
func backendEnabled(name string) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv("INTEGRATION_BACKEND")))
	if value == "" || value == "all" {
		return true
	}
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == name {
			return true
		}
	}
	return false
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) (testcontainers.Container, string) {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(shutdownCtx)
	})
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s container host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("%s container port: %v", req.Image, err)
	}
	return container, net.JoinHostPort(host, mapped.Port())
}

func startRedis(t *testing.T) (testcontainers.Container, string) {
	t.Helper()
	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-bookworm",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}, "6379/tcp")
}

func startPostgres(t *testing.T) string {
	t.Helper()
	_, addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-bookworm",
		Env:          map[string]string{"POSTGRES_PASSWORD": "pass", "POSTGRES_USER": "user", "POSTGRES_DB": "news"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	}, "5432/tcp")
	return "postgres://user:pass@" + addr + "/news?sslmode=disable"
}

func startMySQL(t *testing.T) string {
	t.Helper()
	_, addr := startContainer(t, testcontainers.ContainerRequest{
		Image: "mysql:8",
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "pass",
			"MYSQL_DATABASE":      "news",
			"MYSQL_USER":          "user",
			"MYSQL_PASSWORD":      "pass",
		},
		ExposedPorts: []string{"3306/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("3306/tcp").WithStartupTimeout(90*time.Second),
			wait.ForLog("ready for connections").WithOccurrence(2).WithStartupTimeout(90*time.Second),
		),
	}, "3306/tcp")
	return "user:pass@tcp(" + addr + ")/news?charset=utf8mb4"
}

// retry calls fn until it succeeds or timeout passes.
func retry(timeout time.Duration, fn func() error) error {
	deadline := time.Now().Add(timeout)
	for {
		err := fn()
		if err == nil || time.Now().After(deadline) {
			return err
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func startNATS(t *testing.T) string {
	t.Helper()
	_, addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "nats:2",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
	}, "4222/tcp")
	return "nats://" + addr
}
