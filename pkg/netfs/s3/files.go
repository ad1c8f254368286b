package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/netfs/pkg/netfs"
)

// objectReader streams a GetObject body.
type objectReader struct {
	body      io.ReadCloser
	remaining int64
}

func newObjectReader(out *s3.GetObjectOutput) *objectReader {
	return &objectReader{body: out.Body, remaining: aws.ToInt64(out.ContentLength)}
}

func (r *objectReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		r.remaining = 0
	}
	return n, err
}

func (r *objectReader) Write(p []byte) (int, error) { return 0, netfs.ErrReadOnly }

func (r *objectReader) Remaining() int { return int(r.remaining) }

func (r *objectReader) Close() error { return r.body.Close() }

// objectWriter buffers the object and uploads it in one PutObject on
// Close. S3 objects are immutable, so append starts from the current
// content.
type objectWriter struct {
	ctx    context.Context
	b      *Backend
	key    string
	buf    bytes.Buffer
	closed bool
}

// preload reads the existing object into the buffer. A missing object
// starts empty.
func (w *objectWriter) preload() error {
	out, err := w.b.cfg.Client.GetObject(w.ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.b.bucket),
		Key:    aws.String(w.key),
	})
	if err != nil {
		if err = mapError(err); errors.Is(err, netfs.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get object %s: %w", w.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if _, err := w.buf.ReadFrom(out.Body); err != nil {
		return fmt.Errorf("failed to read object %s: %w", w.key, err)
	}
	return nil
}

func (w *objectWriter) Read(p []byte) (int, error) { return 0, netfs.ErrWriteOnly }

func (w *objectWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.b.cfg.Client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.b.bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(int64(w.buf.Len())),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", w.key, err)
	}
	return nil
}
