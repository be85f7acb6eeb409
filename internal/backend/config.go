package backend

import (
	"fmt"

	"gastos/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s (expected one of %v)", appConfig.DataBackend, GetBackendTypes())
	}

	return Config{
		Type:               backendType,
		SQLiteDBPath:       appConfig.SQLiteDBPath,
		PostgresDSN:        appConfig.PostgresDSN,
		FirestoreProjectID: appConfig.FirestoreProjectID,
		SeedDir:            appConfig.SeedDir,
		AllowedEmails:      appConfig.AllowedEmails,
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
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	case FirestoreBackend:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("Firestore project ID is required for firestore backend")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, FirestoreBackend}
}
