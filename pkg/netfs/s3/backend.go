// Package s3 serves s3:// locators from Amazon S3 or an S3-compatible
// object store.
//
// Path-Based Key Design:
//   - The locator host is the bucket, the locator path is the key
//   - Keys have no leading "/" and carry an optional configured prefix
//   - Directories are key prefixes ending in "/"; mkdir writes an empty
//     marker object so empty directories are listable
//
// The backend is stateless: Mount records the bucket and, if configured,
// checks that it is reachable.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/netfs"
)

// Scheme is the locator scheme served by this backend.
const Scheme = "s3"

// API is the subset of *s3.Client the backend calls.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ErrNotEmpty is returned by RmDir for a prefix that still holds objects.
var ErrNotEmpty = errors.New("s3: directory not empty")

// Config configures a Backend.
type Config struct {
	// Client is the configured S3 client.
	Client API

	// KeyPrefix is prepended to every key, e.g. "netfs/".
	KeyPrefix string

	// VerifyBucket makes Mount issue a HeadBucket.
	VerifyBucket bool
}

// Backend implements netfs.Backend on an S3 bucket.
//
// Thread Safety:
// A Backend belongs to one FS and is not safe for concurrent use.
type Backend struct {
	cfg    Config
	bucket string
}

var (
	_ netfs.Backend    = (*Backend)(nil)
	_ netfs.Stater     = (*Backend)(nil)
	_ netfs.DirMaker   = (*Backend)(nil)
	_ netfs.DirRemover = (*Backend)(nil)
	_ netfs.Renamer    = (*Backend)(nil)
	_ netfs.Remover    = (*Backend)(nil)
)

// New creates an unmounted backend.
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Factory returns a netfs.Factory creating backends from cfg.
func Factory(cfg Config) netfs.Factory {
	return func(*netfs.Locator) (netfs.Backend, error) {
		if cfg.Client == nil {
			return nil, fmt.Errorf("s3: client is required")
		}
		return New(cfg), nil
	}
}

func (b *Backend) Scheme() string { return Scheme }

// Bucket returns the mounted bucket, or "".
func (b *Backend) Bucket() string { return b.bucket }

// Mount selects the bucket named by the locator host.
func (b *Backend) Mount(ctx context.Context, loc *netfs.Locator) error {
	if loc.Host == "" {
		return fmt.Errorf("%w: bucket name is required", netfs.ErrInvalidDevicespec)
	}
	if b.cfg.VerifyBucket {
		_, err := b.cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(loc.Host)})
		if err != nil {
			return fmt.Errorf("failed to access bucket %q: %w", loc.Host, mapError(err))
		}
	}
	b.bucket = loc.Host
	logger.Debug("s3: mounted bucket=%s prefix=%s", b.bucket, b.cfg.KeyPrefix)
	return nil
}

// Unmount forgets the bucket.
func (b *Backend) Unmount(ctx context.Context) error {
	b.bucket = ""
	return nil
}

// objectKey returns the full key for p.
//
// Example:
//
//	Key Prefix: "netfs/"
//	Path:       "/docs/report.txt"
//	S3 Key:     "netfs/docs/report.txt"
func (b *Backend) objectKey(p string) string {
	return b.cfg.KeyPrefix + strings.TrimPrefix(path.Clean("/"+p), "/")
}

// dirPrefix returns the key prefix under which the children of p live.
func (b *Backend) dirPrefix(p string) string {
	key := b.objectKey(p)
	if key == b.cfg.KeyPrefix || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

func (b *Backend) active() error {
	if b.bucket == "" {
		return netfs.ErrNotOpen
	}
	return nil
}

// mapError translates not-found errors to netfs.ErrNotFound.
func mapError(err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &notFound) || errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %v", netfs.ErrNotFound, err)
	}
	return err
}

// OpenFile opens p. Append is a read-modify-write of the whole object.
func (b *Backend) OpenFile(ctx context.Context, p string, mode netfs.OpenMode) (netfs.File, error) {
	if err := b.active(); err != nil {
		return nil, err
	}
	key := b.objectKey(p)

	switch mode {
	case netfs.ModeRead:
		out, err := b.cfg.Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get object %s: %w", key, mapError(err))
		}
		return newObjectReader(out), nil
	case netfs.ModeWrite:
		return &objectWriter{ctx: ctx, b: b, key: key}, nil
	case netfs.ModeAppend:
		w := &objectWriter{ctx: ctx, b: b, key: key}
		if err := w.preload(); err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("s3: open %s (%s): %w", p, mode, netfs.ErrNotImplemented)
	}
}

// ReadDir lists the objects and common prefixes directly under p.
func (b *Backend) ReadDir(ctx context.Context, p string) ([]netfs.FileInfo, error) {
	if err := b.active(); err != nil {
		return nil, err
	}
	prefix := b.dirPrefix(p)

	paginator := s3.NewListObjectsV2Paginator(b.cfg.Client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []netfs.FileInfo
	found := false
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", mapError(err))
		}

		for _, cp := range page.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				entries = append(entries, netfs.FileInfo{Name: name, IsDir: true})
			}
		}
		for _, obj := range page.Contents {
			found = true
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue // directory marker
			}
			entries = append(entries, netfs.FileInfo{
				Name:    name,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	if !found && prefix != b.cfg.KeyPrefix {
		return nil, fmt.Errorf("s3: list %s: %w", p, netfs.ErrNotFound)
	}
	return entries, nil
}

// Stat returns the metadata of the object p, or of the directory p when
// objects exist under its prefix.
func (b *Backend) Stat(ctx context.Context, p string) (netfs.FileInfo, error) {
	if err := b.active(); err != nil {
		return netfs.FileInfo{}, err
	}
	name := path.Base(path.Clean("/" + p))
	key := b.objectKey(p)

	if key != b.cfg.KeyPrefix {
		out, err := b.cfg.Client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return netfs.FileInfo{
				Name:    name,
				Size:    aws.ToInt64(out.ContentLength),
				ModTime: aws.ToTime(out.LastModified),
			}, nil
		}
		if err = mapError(err); !errors.Is(err, netfs.ErrNotFound) {
			return netfs.FileInfo{}, fmt.Errorf("failed to head object %s: %w", key, err)
		}
	}

	isDir, err := b.hasChildren(ctx, b.dirPrefix(p))
	if err != nil {
		return netfs.FileInfo{}, err
	}
	if !isDir && key != b.cfg.KeyPrefix {
		return netfs.FileInfo{}, fmt.Errorf("s3: stat %s: %w", p, netfs.ErrNotFound)
	}
	return netfs.FileInfo{Name: name, IsDir: true}, nil
}

// hasChildren reports whether any key starts with prefix.
func (b *Backend) hasChildren(ctx context.Context, prefix string) (bool, error) {
	out, err := b.cfg.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list objects: %w", mapError(err))
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// MkDir writes the directory marker of p.
func (b *Backend) MkDir(ctx context.Context, p string) error {
	if _, err := b.Stat(ctx, p); err == nil {
		return fmt.Errorf("s3: mkdir %s: %w", p, netfs.ErrExists)
	} else if !errors.Is(err, netfs.ErrNotFound) {
		return err
	}

	_, err := b.cfg.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.dirPrefix(p)),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return fmt.Errorf("failed to write directory marker: %w", err)
	}
	return nil
}

// RmDir removes the directory marker of p. Only empty directories can be
// removed.
func (b *Backend) RmDir(ctx context.Context, p string) error {
	if err := b.active(); err != nil {
		return err
	}
	prefix := b.dirPrefix(p)

	out, err := b.cfg.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return fmt.Errorf("failed to list objects: %w", mapError(err))
	}
	switch {
	case len(out.Contents) == 0:
		return fmt.Errorf("s3: rmdir %s: %w", p, netfs.ErrNotFound)
	case len(out.Contents) > 1 || aws.ToString(out.Contents[0].Key) != prefix:
		return fmt.Errorf("s3: rmdir %s: %w", p, ErrNotEmpty)
	}

	return b.deleteKey(ctx, prefix)
}

// Remove deletes the object p.
func (b *Backend) Remove(ctx context.Context, p string) error {
	if err := b.active(); err != nil {
		return err
	}
	key := b.objectKey(p)
	if _, err := b.cfg.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to head object %s: %w", key, mapError(err))
	}
	return b.deleteKey(ctx, key)
}

func (b *Backend) deleteKey(ctx context.Context, key string) error {
	_, err := b.cfg.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Rename copies from to to and deletes from. An existing target is not
// overwritten.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := b.active(); err != nil {
		return err
	}
	src, dst := b.objectKey(from), b.objectKey(to)

	_, err := b.cfg.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(dst),
	})
	if err == nil {
		return fmt.Errorf("s3: rename to %s: %w", to, netfs.ErrExists)
	}
	if err = mapError(err); !errors.Is(err, netfs.ErrNotFound) {
		return fmt.Errorf("failed to head object %s: %w", dst, err)
	}

	_, err = b.cfg.Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(url.PathEscape(b.bucket + "/" + src)),
	})
	if err != nil {
		return fmt.Errorf("failed to copy object %s: %w", src, mapError(err))
	}
	return b.deleteKey(ctx, src)
}
