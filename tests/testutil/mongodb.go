package testutil

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDB test configuration constants.
const (
	mongoCtxTimeout                = 10 * time.Second
	mongoContainerStartupTimeout   = 60 * time.Second
	mongoContainerTerminateTimeout = 5 * time.Second
)

var (
	sharedMongoContainer   *SharedMongoContainer
	sharedMongoContainerMu sync.Mutex
)

// SharedMongoContainer represents a reusable MongoDB container for tests.
type SharedMongoContainer struct {
	Container testcontainers.Container
	URI       string
}

// GetSharedMongoContainer returns a singleton MongoDB container.
func GetSharedMongoContainer(ctx context.Context) (*SharedMongoContainer, error) {
	sharedMongoContainerMu.Lock()
	defer sharedMongoContainerMu.Unlock()

	if sharedMongoContainer != nil {
		state, err := sharedMongoContainer.Container.State(ctx)
		if err == nil && state.Running {
			return sharedMongoContainer, nil
		}
		terminateCtx, cancel := context.WithTimeout(context.Background(), mongoContainerTerminateTimeout)
		_ = sharedMongoContainer.Container.Terminate(terminateCtx)
		cancel()
		sharedMongoContainer = nil
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), mongoContainerStartupTimeout)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Waiting for connections").WithStartupTimeout(mongoContainerStartupTimeout),
			wait.ForListeningPort("27017/tcp").WithStartupTimeout(mongoContainerStartupTimeout),
		),
	}

	cont, err := testcontainers.GenericContainer(startupCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MongoDB container: %w", err)
	}

	host, err := cont.Host(startupCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := cont.MappedPort(startupCtx, "27017")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	sharedMongoContainer = &SharedMongoContainer{
		Container: cont,
		URI:       "mongodb://" + net.JoinHostPort(host, port.Port()),
	}

	return sharedMongoContainer, nil
}

// SetupTestMongoDB returns a database in the shared MongoDB container,
// named uniquely per test. The database is dropped when the test finishes.
func SetupTestMongoDB(t *testing.T) *mongo.Database {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), mongoCtxTimeout)
	defer cancel()

	cont, err := GetSharedMongoContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to get shared MongoDB container: %v", err)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cont.URI))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	if pingErr := client.Ping(ctx, nil); pingErr != nil {
		t.Fatalf("Failed to ping MongoDB: %v", pingErr)
	}

	dbName := "mixgram_test_" + sanitizeDBName(t.Name())
	db := client.Database(dbName)

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), mongoCtxTimeout)
		defer cleanupCancel()
		_ = db.Drop(cleanupCtx)
		_ = client.Disconnect(cleanupCtx)
	})

	return db
}

// sanitizeDBName strips characters MongoDB does not allow in database names.
func sanitizeDBName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ".", "_", " ", "_", "\"", "_", "$", "_")
	return replacer.Replace(name)
}

// CleanupSharedMongoContainer terminates the shared container.
func CleanupSharedMongoContainer() {
	sharedMongoContainerMu.Lock()
	defer sharedMongoContainerMu.Unlock()

	if sharedMongoContainer != nil {
		if sharedMongoContainer.Container != nil {
			ctx, cancel := context.WithTimeout(context.Background(), mongoContainerTerminateTimeout)
			defer cancel()
			_ = sharedMongoContainer.Container.Terminate(ctx)
		}
		sharedMongoContainer = nil
	}
}
