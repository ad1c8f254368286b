package webdav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/marmos91/netfs/pkg/netfs"
)

// bodyFile streams a GET response. It knows how many bytes remain.
type bodyFile struct {
	r         io.Reader
	body      io.Closer
	remaining int64
}

func newBodyFile(resp *http.Response) (netfs.File, error) {
	if resp.ContentLength >= 0 {
		return &bodyFile{r: resp.Body, body: resp.Body, remaining: resp.ContentLength}, nil
	}

	// Chunked response: buffer it so Remaining is exact.
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("webdav: read body: %w", err)
	}
	return &bodyFile{r: bytes.NewReader(data), remaining: int64(len(data))}, nil
}

func (f *bodyFile) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	f.remaining -= int64(n)
	if f.remaining < 0 {
		f.remaining = 0
	}
	return n, err
}

func (f *bodyFile) Write(p []byte) (int, error) { return 0, netfs.ErrReadOnly }

func (f *bodyFile) Remaining() int { return int(f.remaining) }

func (f *bodyFile) Close() error {
	if f.body == nil {
		return nil
	}
	return f.body.Close()
}

// uploadFile collects writes and PUTs them on Close.
type uploadFile struct {
	ctx    context.Context
	b      *Backend
	path   string
	buf    bytes.Buffer
	closed bool
}

func (f *uploadFile) Read(p []byte) (int, error) { return 0, netfs.ErrWriteOnly }

func (f *uploadFile) Write(p []byte) (int, error) { return f.buf.Write(p) }

func (f *uploadFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	req, err := f.b.newRequest(f.ctx, http.MethodPut, f.path, bytes.NewReader(f.buf.Bytes()))
	if err != nil {
		return err
	}
	resp, err := f.b.do(req, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// postFile collects writes as the request body. The first Read sends the
// POST and then streams the response.
type postFile struct {
	ctx  context.Context
	b    *Backend
	path string
	buf  bytes.Buffer
	resp *http.Response
	sent bool
}

func (f *postFile) send() error {
	f.sent = true
	req, err := f.b.newRequest(f.ctx, http.MethodPost, f.path, bytes.NewReader(f.buf.Bytes()))
	if err != nil {
		return err
	}
	resp, err := f.b.do(req, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	if err != nil {
		return err
	}
	f.resp = resp
	return nil
}

func (f *postFile) Write(p []byte) (int, error) {
	if f.sent {
		return 0, fmt.Errorf("webdav: POST %s already sent: %w", f.path, netfs.ErrReadOnly)
	}
	return f.buf.Write(p)
}

func (f *postFile) Read(p []byte) (int, error) {
	if !f.sent {
		if err := f.send(); err != nil {
			return 0, err
		}
	}
	if f.resp == nil {
		return 0, io.EOF
	}
	return f.resp.Body.Read(p)
}

func (f *postFile) Close() error {
	if !f.sent {
		if err := f.send(); err != nil {
			return err
		}
	}
	if f.resp == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, f.resp.Body)
	return f.resp.Body.Close()
}
