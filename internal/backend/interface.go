package backend

import (
	"context"

	"smartsave/internal/ledger"
)

// Pinger reports whether the underlying store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger store and its lifecycle hooks
type BackendResult struct {
	Store   ledger.Store
	Pinger  Pinger
	Cleanup CleanupFunc
}

// Close runs Cleanup if one was set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Ping checks the store, treating a store without a health check as always up.
func (r *BackendResult) Ping(ctx context.Context) error {
	if r == nil || r.Pinger == nil {
		return nil
	}
	return r.Pinger.Ping(ctx)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory
	SeedFile string

	// SQLite
	SQLiteDBPath string

	// DynamoDB
	DynamoDBTable    string
	AWSRegion        string
	DynamoDBEndpoint string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	DynamoDBBackend BackendType = "dynamodb"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, DynamoDBBackend:
		return true
	default:
		return false
	}
}
