package storage

import (
	"context"
	"fmt"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/config"
	"gmb-connector/internal/crypto"
)

// New opens the backend named by cfg.DatabaseType from the default registry and,
// when an encryption key is configured, wraps it so tokens are encrypted at rest.
// The backend package must be imported for its registration to run.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	storageType := cfg.DatabaseType
	if storageType == "postgresql" {
		storageType = "postgres"
	}

	if !DefaultRegistry.IsRegistered(storageType) {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType)).
			WithContext("available", GetAvailableTypes())
	}

	store, err := DefaultRegistry.Create(ctx, storageType, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey == "" {
		return store, nil
	}

	cipher, err := crypto.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return NewEncryptedStore(store, cipher), nil
}
