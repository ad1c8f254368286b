// Package webdav serves http:// and https:// locators over HTTP with the
// WebDAV extensions for directories.
//
// The backend is stateless: Mount only records the endpoint. Open modes map
// to HTTP methods:
//
//	read        GET
//	directory   PROPFIND (Depth: 1)
//	write       PUT, sent on close
//	append      not implemented
//	read/write  POST, sent on the first read or on close
//
// mkdir, rmdir, delete and rename map to MKCOL, DELETE and MOVE; stat is a
// PROPFIND with Depth: 0.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/netfs"
)

// Config configures a Backend. Field tags allow decoding from the
// backends.http section of the configuration.
type Config struct {
	// Timeout bounds every request. Default: 30s.
	Timeout time.Duration `mapstructure:"timeout"`

	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`

	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client `mapstructure:"-"`
}

// DefaultTimeout is the request timeout used when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Backend implements netfs.Backend for one of http or https.
//
// Thread safety:
// A Backend belongs to one FS and is not safe for concurrent use.
type Backend struct {
	scheme string
	client *http.Client
	agent  string
	base   *netfs.Locator
}

var (
	_ netfs.Backend    = (*Backend)(nil)
	_ netfs.Stater     = (*Backend)(nil)
	_ netfs.DirMaker   = (*Backend)(nil)
	_ netfs.DirRemover = (*Backend)(nil)
	_ netfs.Renamer    = (*Backend)(nil)
	_ netfs.Remover    = (*Backend)(nil)
)

// New creates a backend for scheme ("http" or "https").
func New(scheme string, cfg Config) *Backend {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Backend{scheme: scheme, client: client, agent: cfg.UserAgent}
}

// Factory returns a netfs.Factory creating backends from cfg. The backend
// scheme follows the locator.
func Factory(cfg Config) netfs.Factory {
	return func(loc *netfs.Locator) (netfs.Backend, error) {
		return New(loc.Scheme, cfg), nil
	}
}

func (b *Backend) Scheme() string { return b.scheme }

// Mount records the endpoint. No request is made.
func (b *Backend) Mount(ctx context.Context, loc *netfs.Locator) error {
	c := *loc
	b.base = &c
	return nil
}

// Unmount forgets the endpoint.
func (b *Backend) Unmount(ctx context.Context) error {
	b.base = nil
	return nil
}

func (b *Backend) url(p string) (string, error) {
	if b.base == nil {
		return "", netfs.ErrNotOpen
	}
	u := url.URL{Scheme: b.scheme, Host: b.base.HostPort(), Path: p}
	return u.String(), nil
}

func (b *Backend) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	target, err := b.url(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("webdav: failed to create request: %w", err)
	}
	if b.base.User != "" {
		req.SetBasicAuth(b.base.User, b.base.Password)
	}
	if b.agent != "" {
		req.Header.Set("User-Agent", b.agent)
	}
	return req, nil
}

// do sends req and checks the status against the accepted codes. On
// success the caller owns the response body.
func (b *Backend) do(req *http.Request, accept ...int) (*http.Response, error) {
	logger.Debug("webdav: %s %s", req.Method, req.URL)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webdav: %s %s: %w", req.Method, req.URL, err)
	}
	for _, code := range accept {
		if resp.StatusCode == code {
			return resp, nil
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil, &StatusError{Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode}
}

// exec sends a request whose response body is not needed.
func (b *Backend) exec(ctx context.Context, method, p string, header http.Header, accept ...int) error {
	req, err := b.newRequest(ctx, method, p, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := b.do(req, accept...)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// OpenFile opens p in mode.
func (b *Backend) OpenFile(ctx context.Context, p string, mode netfs.OpenMode) (netfs.File, error) {
	switch mode {
	case netfs.ModeRead:
		req, err := b.newRequest(ctx, http.MethodGet, p, nil)
		if err != nil {
			return nil, err
		}
		resp, err := b.do(req, http.StatusOK)
		if err != nil {
			return nil, err
		}
		return newBodyFile(resp)
	case netfs.ModeWrite:
		if _, err := b.url(p); err != nil {
			return nil, err
		}
		return &uploadFile{ctx: ctx, b: b, path: p}, nil
	case netfs.ModeReadWrite:
		if _, err := b.url(p); err != nil {
			return nil, err
		}
		return &postFile{ctx: ctx, b: b, path: p}, nil
	default:
		return nil, fmt.Errorf("webdav: open %s (%s): %w", p, mode, netfs.ErrNotImplemented)
	}
}

// MkDir creates the collection p.
func (b *Backend) MkDir(ctx context.Context, p string) error {
	err := b.exec(ctx, "MKCOL", collectionPath(p), nil, http.StatusCreated)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusMethodNotAllowed {
		// MKCOL on an existing resource.
		return fmt.Errorf("%w: %s", netfs.ErrExists, p)
	}
	return err
}

// RmDir removes the collection p.
func (b *Backend) RmDir(ctx context.Context, p string) error {
	return b.exec(ctx, http.MethodDelete, collectionPath(p), nil, http.StatusOK, http.StatusNoContent)
}

// Remove deletes the resource p.
func (b *Backend) Remove(ctx context.Context, p string) error {
	return b.exec(ctx, http.MethodDelete, p, nil, http.StatusOK, http.StatusNoContent)
}

// Rename moves from to to without overwriting an existing target.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	dest, err := b.url(to)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Destination", dest)
	header.Set("Overwrite", "F")
	return b.exec(ctx, "MOVE", from, header, http.StatusCreated, http.StatusNoContent)
}

func collectionPath(p string) string {
	if p == "" || p[len(p)-1] != '/' {
		return p + "/"
	}
	return p
}
