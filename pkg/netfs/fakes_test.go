package netfs_test

import (
	"bytes"
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/netfs/pkg/netfs"
)

// memBackend implements only the mandatory Backend hooks.
type memBackend struct {
	mu         sync.Mutex
	files      map[string][]byte
	dirs       map[string]bool
	calls      []string
	mounts     int
	unmounts   int
	readDirs   int
	unmountErr error
	closeErr   error
}

func newMemBackend() *memBackend {
	return &memBackend{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

func (b *memBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *memBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *memBackend) Scheme() string { return "mem" }

func (b *memBackend) Mount(ctx context.Context, loc *netfs.Locator) error {
	b.mounts++
	b.record("mount " + loc.Host)
	return nil
}

func (b *memBackend) Unmount(ctx context.Context) error {
	b.unmounts++
	b.record("unmount")
	return b.unmountErr
}

func (b *memBackend) OpenFile(ctx context.Context, p string, mode netfs.OpenMode) (netfs.File, error) {
	b.record("open " + p + " " + mode.String())
	if mode == netfs.ModeAppend {
		return nil, netfs.ErrNotImplemented
	}
	data, ok := b.files[p]
	if !ok && mode.CanRead() {
		return nil, netfs.ErrNotFound
	}
	return &memFile{r: bytes.NewReader(data), b: b, path: p, closeErr: b.closeErr}, nil
}

func (b *memBackend) ReadDir(ctx context.Context, p string) ([]netfs.FileInfo, error) {
	b.readDirs++
	b.record("readdir " + p)
	if !b.dirs[p] {
		return nil, netfs.ErrNotFound
	}
	var out []netfs.FileInfo
	for f, data := range b.files {
		if path.Dir(f) == p {
			out = append(out, netfs.FileInfo{Name: path.Base(f), Size: int64(len(data))})
		}
	}
	for d := range b.dirs {
		if d != "/" && path.Dir(d) == p {
			out = append(out, netfs.FileInfo{Name: path.Base(d), IsDir: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memFile struct {
	r        *bytes.Reader
	w        bytes.Buffer
	b        *memBackend
	path     string
	closeErr error
}

func (f *memFile) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *memFile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *memFile) Remaining() int              { return f.r.Len() }

func (f *memFile) Close() error {
	if f.w.Len() > 0 {
		f.b.files[f.path] = f.w.Bytes()
	}
	return f.closeErr
}

// fullBackend adds every optional capability.
type fullBackend struct {
	*memBackend
}

func newFullBackend() *fullBackend { return &fullBackend{newMemBackend()} }

func (b *fullBackend) Stat(ctx context.Context, p string) (netfs.FileInfo, error) {
	b.record("stat " + p)
	if b.dirs[p] {
		return netfs.FileInfo{Name: path.Base(p), IsDir: true, ModTime: time.Unix(1000, 0)}, nil
	}
	data, ok := b.files[p]
	if !ok {
		return netfs.FileInfo{}, netfs.ErrNotFound
	}
	return netfs.FileInfo{Name: path.Base(p), Size: int64(len(data)), ModTime: time.Unix(2000, 0)}, nil
}

func (b *fullBackend) MkDir(ctx context.Context, p string) error {
	b.record("mkdir " + p)
	if b.dirs[p] {
		return netfs.ErrExists
	}
	b.dirs[p] = true
	return nil
}

func (b *fullBackend) RmDir(ctx context.Context, p string) error {
	b.record("rmdir " + p)
	delete(b.dirs, p)
	return nil
}

func (b *fullBackend) Rename(ctx context.Context, from, to string) error {
	b.record("rename " + from + " " + to)
	data, ok := b.files[from]
	if !ok {
		return netfs.ErrNotFound
	}
	delete(b.files, from)
	b.files[to] = data
	return nil
}

func (b *fullBackend) Remove(ctx context.Context, p string) error {
	b.record("delete " + p)
	delete(b.files, p)
	return nil
}

func (b *fullBackend) Lock(ctx context.Context, p string) error {
	b.record("lock " + p)
	return nil
}

func (b *fullBackend) Unlock(ctx context.Context, p string) error {
	b.record("unlock " + p)
	return nil
}

// mapCache is a DirCache without expiry.
type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]netfs.FileInfo
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]netfs.FileInfo)}
}

func (c *mapCache) Get(key string) ([]netfs.FileInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *mapCache) Put(key string, entries []netfs.FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entries
}

func (c *mapCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, key)
	delete(c.entries, key)
}

var errClose = errors.New("close failed")

func hasPrefix(calls []string, prefix string) bool {
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
