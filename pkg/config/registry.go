package config

import (
	"context"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/netfs"
)

// InitializeRegistry creates a backend registry from the configuration.
//
// This function registers:
//  1. tnfs:// with the session policy of cfg.TNFS
//  2. http:// and https:// with the options of cfg.Backends.HTTP
//  3. s3:// when cfg.Backends.S3 is present
//
// Every FS built by the registry shares rt's metrics and directory cache.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	rt, _ := config.NewRuntime(cfg)
//	defer rt.Close()
//	reg, err := config.InitializeRegistry(ctx, cfg, rt)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
func InitializeRegistry(ctx context.Context, cfg *Config, rt *Runtime) (*netfs.Registry, error) {
	logger.Debug("Initializing backend registry from configuration")

	reg := netfs.NewRegistry(FSOptions(cfg, rt))

	reg.Register("tnfs", createTNFSFactory(cfg.TNFS, rt.Metrics.TNFS))

	davFactory, err := createWebDAVFactory(cfg.Backends.HTTP)
	if err != nil {
		return nil, err
	}
	reg.Register("http", davFactory)
	reg.Register("https", davFactory)

	if cfg.Backends.S3 != nil {
		s3Factory, err := createS3Factory(ctx, cfg.Backends.S3)
		if err != nil {
			return nil, err
		}
		reg.Register("s3", s3Factory)
	}

	logger.Debug("Registered backends: %v", reg.Schemes())

	return reg, nil
}
