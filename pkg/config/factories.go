package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/netfs/pkg/metrics"
	"github.com/marmos91/netfs/pkg/netfs"
	s3backend "github.com/marmos91/netfs/pkg/netfs/s3"
	tnfsbackend "github.com/marmos91/netfs/pkg/netfs/tnfs"
	"github.com/marmos91/netfs/pkg/netfs/webdav"
	"github.com/marmos91/netfs/pkg/tnfs"
)

// SessionOptions converts the tnfs section into session options.
func SessionOptions(cfg TNFSConfig, m metrics.TNFSMetrics) tnfs.Options {
	return tnfs.Options{
		Timeout:                  cfg.Timeout,
		MaxRetries:               cfg.MaxRetries,
		MinRetryInterval:         cfg.MinRetryInterval,
		User:                     cfg.User,
		Password:                 cfg.Password,
		RequestsPerSecond:        cfg.RequestsPerSecond,
		Burst:                    cfg.Burst,
		ClearHandleOnFailedClose: cfg.ClearHandleOnFailedClose,
		Metrics:                  m,
	}
}

// createTNFSFactory creates the factory for tnfs:// locators.
func createTNFSFactory(cfg TNFSConfig, m metrics.TNFSMetrics) netfs.Factory {
	return tnfsbackend.Factory(tnfsbackend.Config{
		Session: SessionOptions(cfg, m),
	})
}

// decodeOptions decodes a backend option map into out. Duration fields
// accept strings such as "30s".
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// createWebDAVFactory creates the factory for http:// and https:// locators.
func createWebDAVFactory(options map[string]any) (netfs.Factory, error) {
	var davCfg webdav.Config
	if err := decodeOptions(options, &davCfg); err != nil {
		return nil, fmt.Errorf("failed to decode http backend config: %w", err)
	}

	if davCfg.Timeout < 0 {
		return nil, fmt.Errorf("http backend: timeout must not be negative")
	}

	return webdav.Factory(davCfg), nil
}

// createS3Factory creates the factory for s3:// locators.
func createS3Factory(ctx context.Context, options map[string]any) (netfs.Factory, error) {
	var clientCfg s3backend.ClientConfig
	if err := decodeOptions(options, &clientCfg); err != nil {
		return nil, fmt.Errorf("failed to decode s3 backend config: %w", err)
	}

	if err := validate.Struct(&clientCfg); err != nil {
		return nil, fmt.Errorf("s3 backend: %w", formatValidationError(err))
	}

	client, err := s3backend.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return s3backend.Factory(s3backend.Config{
		Client:       client,
		KeyPrefix:    clientCfg.KeyPrefix,
		VerifyBucket: clientCfg.VerifyBucket,
	}), nil
}
