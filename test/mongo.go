package test

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoPort is the port exposed by the MongoDB test container.
const MongoPort = "27017/tcp"

// StartMongoContainer starts a MongoDB container for testing. Use
// container.Endpoint(ctx, "mongodb") to get the connection URI.
func StartMongoContainer(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{MongoPort},
				WaitingFor: wait.ForAll(
					wait.ForLog("Waiting for connections"),
					wait.ForListeningPort(nat.Port(MongoPort)),
				),
			},
			Started: true,
		})
}

// RandomDatabaseName returns a database name that is unique for every call,
// so parallel test packages never share data.
func RandomDatabaseName() string {
	return fmt.Sprintf("checkout-test-%d", time.Now().UnixNano())
}
