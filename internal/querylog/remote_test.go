package querylog

import (
	"context"
	"io"
	"log"
	"testing"

	"courtcase-backend/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRemoteStore runs the store against a real libsql server, it needs a
// working docker daemon.
func TestRemoteStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping libsql server test in short mode")
	}

	ctx := context.Background()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	sqld, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "ghcr.io/tursodatabase/libsql-server:latest",
				ExposedPorts: []string{"8080/tcp"},
				WaitingFor:   wait.ForHTTP("/health").WithPort("8080/tcp"),
			},
		},
	)
	if err != nil {
		t.Skipf("libsql server unavailable: %s", err.Error())
	}
	t.Cleanup(func() {
		err := sqld.Terminate(context.Background())
		if err != nil {
			t.Log(err)
		}
	})

	endpoint, err := sqld.PortEndpoint(ctx, "8080/tcp", "http")
	require.NoError(t, err)

	database, err := db.Config{Url: endpoint}.OpenDB(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, _ := setupStore(t, database)
	testRecordAndGet(t, store)
}
