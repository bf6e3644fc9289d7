package storage

import (
	"fmt"

	"imagegate/internal/config"
)

// NewFromConfig selects the backend from STORAGE_TYPE.
func NewFromConfig(cfg config.Config) (Store, error) {
	switch cfg.StorageType {
	case config.StorageMinIO, config.StorageS3:
		return NewS3(cfg)
	case config.StorageLocalFS:
		return NewLocal(cfg.LocalFSPath, cfg.CDNBaseURL)
	case config.StorageInMemory:
		return NewMemory(cfg.CDNBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}
