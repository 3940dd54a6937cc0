package backend

import (
	"fmt"

	"smartsave/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:             backendType,
		SeedFile:         appConfig.MemorySeedFile,
		SQLiteDBPath:     appConfig.SQLiteDBPath,
		DynamoDBTable:    appConfig.DynamoDBTable,
		AWSRegion:        appConfig.AWSRegion,
		DynamoDBEndpoint: appConfig.DynamoDBEndpoint,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case DynamoDBBackend:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DynamoDB table is required for dynamodb backend")
		}
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS region is required for dynamodb backend")
		}
	case MemoryBackend:
		// seed file is optional
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, DynamoDBBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
