package config

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/netfs/pkg/metrics"
	"github.com/marmos91/netfs/pkg/netfs"
	s3backend "github.com/marmos91/netfs/pkg/netfs/s3"
	tnfsbackend "github.com/marmos91/netfs/pkg/netfs/tnfs"
	"github.com/marmos91/netfs/pkg/netfs/webdav"
)

func mustLocator(t *testing.T, raw string) *netfs.Locator {
	t.Helper()
	loc, err := netfs.ParseLocator(raw)
	if err != nil {
		t.Fatalf("ParseLocator(%q): %v", raw, err)
	}
	return loc
}

func TestSessionOptions(t *testing.T) {
	cfg := TNFSConfig{
		Timeout:                  2 * time.Second,
		MaxRetries:               3,
		MinRetryInterval:         100 * time.Millisecond,
		RequestsPerSecond:        50,
		Burst:                    5,
		User:                     "guest",
		Password:                 "pw",
		ClearHandleOnFailedClose: true,
	}
	m := metrics.NewNoopTNFSMetrics()

	opts := SessionOptions(cfg, m)
	if opts.Timeout != cfg.Timeout || opts.MaxRetries != 3 || opts.MinRetryInterval != cfg.MinRetryInterval {
		t.Errorf("Retry policy not copied: %+v", opts)
	}
	if opts.RequestsPerSecond != 50 || opts.Burst != 5 {
		t.Errorf("Pacing not copied: %+v", opts)
	}
	if opts.User != "guest" || opts.Password != "pw" || !opts.ClearHandleOnFailedClose {
		t.Errorf("Credentials or close policy not copied: %+v", opts)
	}
	if opts.Metrics != m {
		t.Error("Expected metrics to be passed through")
	}
}

func TestCreateTNFSFactory(t *testing.T) {
	factory := createTNFSFactory(GetDefaultConfig().TNFS, metrics.NewNoopTNFSMetrics())

	b, err := factory(mustLocator(t, "tnfs://host/"))
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	if _, ok := b.(*tnfsbackend.Backend); !ok {
		t.Errorf("Expected *tnfs.Backend, got %T", b)
	}
}

func TestCreateWebDAVFactory(t *testing.T) {
	factory, err := createWebDAVFactory(map[string]any{
		"timeout":    "15s",
		"user_agent": "netfs-test",
	})
	if err != nil {
		t.Fatalf("Failed to create http factory: %v", err)
	}

	b, err := factory(mustLocator(t, "https://example.com/x"))
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	dav, ok := b.(*webdav.Backend)
	if !ok {
		t.Fatalf("Expected *webdav.Backend, got %T", b)
	}
	if dav.Scheme() != "https" {
		t.Errorf("Expected scheme https, got %q", dav.Scheme())
	}
}

func TestCreateWebDAVFactory_InvalidOptions(t *testing.T) {
	_, err := createWebDAVFactory(map[string]any{"timeout": "soon"})
	if err == nil {
		t.Fatal("Expected decode error for invalid duration")
	}
	if !strings.Contains(err.Error(), "failed to decode http backend config") {
		t.Errorf("Unexpected error: %v", err)
	}

	_, err = createWebDAVFactory(map[string]any{"timeout": "-1s"})
	if err == nil || !strings.Contains(err.Error(), "must not be negative") {
		t.Errorf("Expected negative timeout error, got: %v", err)
	}
}

func TestDecodeOptions(t *testing.T) {
	var out s3backend.ClientConfig
	err := decodeOptions(map[string]any{
		"region":        "us-east-1",
		"key_prefix":    "netfs/",
		"max_retries":   "4",
		"verify_bucket": true,
	}, &out)
	if err != nil {
		t.Fatalf("decodeOptions failed: %v", err)
	}

	want := s3backend.ClientConfig{Region: "us-east-1", KeyPrefix: "netfs/", MaxRetries: 4, VerifyBucket: true}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("decodeOptions = %+v, want %+v", out, want)
	}
}

func TestCreateS3Factory(t *testing.T) {
	isolateHome(t)
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	factory, err := createS3Factory(context.Background(), map[string]any{
		"region":            "us-east-1",
		"endpoint":          "http://localhost:9000",
		"access_key_id":     "minio",
		"secret_access_key": "minio123",
	})
	if err != nil {
		t.Fatalf("Failed to create s3 factory: %v", err)
	}

	b, err := factory(mustLocator(t, "s3://bucket/key"))
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	if b.Scheme() != "s3" {
		t.Errorf("Expected scheme s3, got %q", b.Scheme())
	}
}

func TestCreateS3Factory_MissingRegion(t *testing.T) {
	_, err := createS3Factory(context.Background(), map[string]any{"endpoint": "http://localhost:9000"})
	if err == nil {
		t.Fatal("Expected error for missing region")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("Expected 'required' error, got: %v", err)
	}
}

func TestInitializeRegistry(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()

	rt, err := NewRuntime(cfg)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	reg, err := InitializeRegistry(ctx, cfg, rt)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}

	want := []string{"http", "https", "tnfs"}
	if got := reg.Schemes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Schemes() = %v, want %v", got, want)
	}

	_, err = reg.Protocol(mustLocator(t, "s3://bucket/"))
	if err == nil {
		t.Error("Expected s3 to be unregistered without an s3 section")
	}
}

func TestInitializeRegistry_WithS3(t *testing.T) {
	isolateHome(t)
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	cfg := GetDefaultConfig()
	cfg.Backends.S3 = map[string]any{"region": "us-east-1", "access_key_id": "a", "secret_access_key": "b"}

	rt, err := NewRuntime(cfg)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	reg, err := InitializeRegistry(context.Background(), cfg, rt)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}

	fs, err := reg.Protocol(mustLocator(t, "s3://bucket/dir"))
	if err != nil {
		t.Fatalf("Protocol failed: %v", err)
	}
	if fs.Backend().Scheme() != "s3" {
		t.Errorf("Expected s3 backend, got %q", fs.Backend().Scheme())
	}
}

func TestNewRuntime_Cache(t *testing.T) {
	cfg := GetDefaultConfig()

	rt, err := NewRuntime(cfg)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	if rt.Cache != nil {
		t.Error("Expected no cache when disabled")
	}
	if rt.Metrics.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if err := rt.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	cfg.Cache.Enabled = true
	rt, err = NewRuntime(cfg)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	if rt.Cache == nil {
		t.Fatal("Expected cache when enabled")
	}

	rt.Cache.Put("k", []netfs.FileInfo{{Name: "a"}})
	if _, ok := rt.Cache.Get("k"); !ok {
		t.Error("Expected cached listing")
	}

	opts := FSOptions(cfg, rt)
	if opts.Cache == nil || opts.EOL != '\n' || opts.Metrics == nil {
		t.Errorf("Unexpected FS options: %+v", opts)
	}

	if err := rt.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
