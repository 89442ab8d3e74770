package testutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MinioContainer wraps a MinIO test container with the credentials and
// endpoint needed to connect a blob store to it.
type MinioContainer struct {
	Container testcontainers.Container
	Endpoint  string
	AccessKey string
	SecretKey string
}

// SetupMinio starts an isolated MinIO container for blob store tests.
// The cleanup function must be called to terminate the container.
func SetupMinio(t *testing.T) (*MinioContainer, func()) {
	t.Helper()

	ctx := context.Background()

	const accessKey, secretKey = "minioadmin", "minioadmin"

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd: []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start MinIO container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	mc := &MinioContainer{
		Container: container,
		Endpoint:  net.JoinHostPort(host, port.Port()),
		AccessKey: accessKey,
		SecretKey: secretKey,
	}

	cleanup := func() {
		_ = container.Terminate(context.Background())
	}

	return mc, cleanup
}
