package netfs

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/metrics"
)

// DirCache caches directory listings. Implementations must be safe for
// concurrent use.
type DirCache interface {
	Get(key string) ([]FileInfo, bool)
	Put(key string, entries []FileInfo)
	Invalidate(key string)
}

// FSOptions configures an FS.
type FSOptions struct {
	// Cache, when set, serves directory listings without asking the backend.
	Cache DirCache

	// Metrics receives adapter metrics. Default: metrics.NewAdapterMetrics.
	Metrics metrics.AdapterMetrics

	// EOL terminates each directory listing line. Default: '\n'.
	EOL byte
}

// StatRecordSize is the size of the record SpecialStat returns:
//
//	offset  size  field
//	0       1     1 if directory, 0 otherwise
//	1       4     size in bytes (little endian, saturated)
//	5       4     modification time, seconds since epoch (little endian)
const StatRecordSize = 9

// FS implements Protocol on top of a Backend.
//
// Thread safety:
// An FS serves one device channel and is not safe for concurrent use.
type FS struct {
	backend Backend
	cache   DirCache
	metrics metrics.AdapterMetrics
	eol     byte

	loc     *Locator
	mode    OpenMode
	mounted bool
	file    File
	listing *bytes.Reader
	lastErr ErrorKind
}

// NewFS wraps backend.
func NewFS(backend Backend, opts FSOptions) *FS {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewAdapterMetrics()
	}
	if opts.EOL == 0 {
		opts.EOL = '\n'
	}
	return &FS{
		backend: backend,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		eol:     opts.EOL,
		lastErr: StatusSuccess,
	}
}

// Backend returns the wrapped backend.
func (fs *FS) Backend() Backend { return fs.backend }

// Locator returns the locator of the open resource, or nil.
func (fs *FS) Locator() *Locator { return fs.loc }

// record stores the outcome of an operation for Status and metrics.
func (fs *FS) record(op string, start time.Time, err error) error {
	fs.lastErr = ErrorKindOf(err)
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Debug("netfs %s %s: %v", fs.backend.Scheme(), op, err)
	}
	fs.metrics.RecordOperation(fs.backend.Scheme(), op, time.Since(start), err)
	return err
}

// Open mounts the backend for loc if needed and opens the file or directory
// selected by frame.Aux1.
func (fs *FS) Open(ctx context.Context, loc *Locator, frame CommandFrame) (err error) {
	start := time.Now()
	defer func() { err = fs.record("open", start, err) }()

	if fs.file != nil || fs.listing != nil {
		return ErrAlreadyOpen
	}
	mode, err := ParseOpenMode(frame.Aux1)
	if err != nil {
		return err
	}
	if err := fs.mount(ctx, loc); err != nil {
		return err
	}

	fs.loc = loc
	fs.mode = mode
	if mode.IsDir() {
		return fs.openDir(ctx, loc.Path)
	}

	f, err := fs.backend.OpenFile(ctx, loc.Path, mode)
	if err != nil {
		return err
	}
	fs.file = f
	return nil
}

func (fs *FS) mount(ctx context.Context, loc *Locator) error {
	if fs.mounted && fs.loc != nil && fs.loc.SameEndpoint(loc) {
		return nil
	}
	if fs.mounted {
		if err := fs.backend.Unmount(ctx); err != nil {
			logger.Debug("netfs %s: unmount before switching endpoint failed: %v", fs.backend.Scheme(), err)
		}
		fs.mounted = false
	}
	if err := fs.backend.Mount(ctx, loc); err != nil {
		return err
	}
	fs.mounted = true
	return nil
}

func (fs *FS) openDir(ctx context.Context, p string) error {
	entries, err := fs.readDir(ctx, p)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.Name)
		if e.IsDir {
			buf.WriteByte('/')
		}
		buf.WriteByte(fs.eol)
	}
	fs.listing = bytes.NewReader(buf.Bytes())
	return nil
}

func (fs *FS) readDir(ctx context.Context, p string) ([]FileInfo, error) {
	key := fs.cacheKey(p)
	if fs.cache != nil {
		if entries, ok := fs.cache.Get(key); ok {
			fs.metrics.RecordCacheLookup(true)
			return entries, nil
		}
		fs.metrics.RecordCacheLookup(false)
	}

	entries, err := fs.backend.ReadDir(ctx, p)
	if err != nil {
		return nil, err
	}
	if fs.cache != nil {
		fs.cache.Put(key, entries)
	}
	return entries, nil
}

func (fs *FS) cacheKey(p string) string {
	return fs.loc.WithPath(path.Clean(p)).String()
}

// Close closes the open resource and unmounts the backend. Every step is
// attempted; all failures are reported.
func (fs *FS) Close(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { err = fs.record("close", start, err) }()

	var result *multierror.Error
	if fs.file != nil {
		if err := fs.file.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close file: %w", err))
		}
		fs.file = nil
	}
	fs.listing = nil

	if fs.mounted {
		if err := fs.backend.Unmount(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("unmount: %w", err))
		}
		fs.mounted = false
	}
	fs.loc = nil

	return result.ErrorOrNil()
}

// Read serves the directory listing or reads from the open file.
func (fs *FS) Read(ctx context.Context, p []byte) (n int, err error) {
	start := time.Now()
	defer func() {
		fs.metrics.RecordBytesRead(fs.backend.Scheme(), n)
		err = fs.record("read", start, err)
	}()

	switch {
	case fs.listing != nil:
		return fs.listing.Read(p)
	case fs.file != nil:
		if !fs.mode.CanRead() {
			return 0, ErrWriteOnly
		}
		return fs.file.Read(p)
	default:
		return 0, ErrNotOpen
	}
}

// Write writes to the open file.
func (fs *FS) Write(ctx context.Context, p []byte) (n int, err error) {
	start := time.Now()
	defer func() { err = fs.record("write", start, err) }()

	switch {
	case fs.listing != nil:
		return 0, ErrReadOnly
	case fs.file != nil:
		if !fs.mode.CanWrite() {
			return 0, ErrReadOnly
		}
		return fs.file.Write(p)
	default:
		return 0, ErrNotOpen
	}
}

// Status reports bytes waiting and the last error. It does not change the
// recorded error.
func (fs *FS) Status(ctx context.Context) (Status, error) {
	st := Status{Connected: fs.mounted, Error: fs.lastErr}
	known := false
	switch {
	case fs.listing != nil:
		st.BytesWaiting = fs.listing.Len()
		known = true
	case fs.file != nil:
		if s, ok := fs.file.(Sizer); ok && fs.mode.CanRead() {
			st.BytesWaiting = s.Remaining()
			known = true
		}
	}
	if known && st.BytesWaiting == 0 && st.Error == StatusSuccess {
		st.Error = StatusEndOfFile
	}
	return st, nil
}

// SpecialInquiry classifies cmd for this backend.
func (fs *FS) SpecialInquiry(cmd byte) DispatchClass {
	_, class := classify(fs.backend, cmd)
	return class
}

func (fs *FS) special(cmd byte, want DispatchClass) (specialCommand, error) {
	sc, class := classify(fs.backend, cmd)
	if class == DispatchUnsupported {
		return sc, fmt.Errorf("%w: 0x%02x on %s", ErrUnsupportedCommand, cmd, fs.backend.Scheme())
	}
	if class != want {
		return sc, fmt.Errorf("%w: %s is %s", ErrDispatchMismatch, sc.name, class)
	}
	return sc, nil
}

// SpecialNoPayload runs remount: the backend session is torn down and
// established again for the current locator.
func (fs *FS) SpecialNoPayload(ctx context.Context, frame CommandFrame) (err error) {
	start := time.Now()
	sc, err := fs.special(frame.Command, DispatchNone)
	if err != nil {
		return fs.record("special", start, err)
	}
	defer func() { err = fs.record(sc.name, start, err) }()

	if fs.loc == nil {
		return ErrNotOpen
	}
	if fs.mounted {
		if err := fs.backend.Unmount(ctx); err != nil {
			logger.Debug("netfs %s: remount unmount failed: %v", fs.backend.Scheme(), err)
		}
		fs.mounted = false
	}
	if err := fs.backend.Mount(ctx, fs.loc); err != nil {
		return err
	}
	fs.mounted = true
	return nil
}

// SpecialToCaller runs stat on the open locator and writes a
// StatRecordSize record into buf (truncated if buf is shorter).
func (fs *FS) SpecialToCaller(ctx context.Context, frame CommandFrame, buf []byte) (n int, err error) {
	start := time.Now()
	sc, err := fs.special(frame.Command, DispatchToCaller)
	if err != nil {
		return 0, fs.record("special", start, err)
	}
	defer func() { err = fs.record(sc.name, start, err) }()

	if fs.loc == nil {
		return 0, ErrNotOpen
	}
	info, err := fs.backend.(Stater).Stat(ctx, fs.loc.Path)
	if err != nil {
		return 0, err
	}
	rec := MarshalStatRecord(info)
	return copy(buf, rec[:]), nil
}

// SpecialToBackend runs a command whose payload is a devicespec naming the
// target, for example "N:TNFS://host/dir/new" for mkdir or
// "N:HTTP://host/dir/old.txt,new.txt" for rename.
//
// While a file or listing is open the target must be on the same endpoint;
// otherwise the command fails with ErrInvalidCommand and the backend stays
// mounted where the open resource lives.
func (fs *FS) SpecialToBackend(ctx context.Context, frame CommandFrame, payload []byte) (err error) {
	start := time.Now()
	sc, err := fs.special(frame.Command, DispatchToBackend)
	if err != nil {
		return fs.record("special", start, err)
	}
	defer func() { err = fs.record(sc.name, start, err) }()

	spec := TrimDevicespec(string(payload))
	var renameTo string
	if frame.Command == SpecialRename {
		from, to, ok := cutLast(spec, ',')
		if !ok || to == "" {
			return fmt.Errorf("%w: rename needs \"old,new\"", ErrInvalidDevicespec)
		}
		spec, renameTo = from, to
	}

	loc, err := ParseLocator(spec)
	if err != nil {
		return err
	}
	open := fs.file != nil || fs.listing != nil
	if open && !fs.loc.SameEndpoint(loc) {
		return fmt.Errorf("%w: %s on %s while %s is open", ErrInvalidCommand, sc.name, loc.HostPort(), fs.loc.HostPort())
	}
	if err := fs.mount(ctx, loc); err != nil {
		return err
	}
	if !open {
		fs.loc = loc
	}

	switch frame.Command {
	case SpecialRename:
		to := loc.WithPath(renameTo).Path
		err = fs.backend.(Renamer).Rename(ctx, loc.Path, to)
		fs.invalidateAt(loc, to)
	case SpecialDelete:
		err = fs.backend.(Remover).Remove(ctx, loc.Path)
	case SpecialLock:
		err = fs.backend.(Locker).Lock(ctx, loc.Path)
	case SpecialUnlock:
		err = fs.backend.(Locker).Unlock(ctx, loc.Path)
	case SpecialMkDir:
		err = fs.backend.(DirMaker).MkDir(ctx, loc.Path)
	case SpecialRmDir:
		err = fs.backend.(DirRemover).RmDir(ctx, loc.Path)
	}
	fs.invalidateAt(loc, loc.Path)
	return err
}

// invalidateAt drops the cached listings of p and of its parent directory.
func (fs *FS) invalidateAt(loc *Locator, p string) {
	if fs.cache == nil {
		return
	}
	target := loc.WithPath(path.Clean(p))
	fs.cache.Invalidate(target.String())
	fs.cache.Invalidate(target.WithPath(".").String())
}

// MarshalStatRecord encodes info in the SpecialStat record layout.
func MarshalStatRecord(info FileInfo) [StatRecordSize]byte {
	var rec [StatRecordSize]byte
	if info.IsDir {
		rec[0] = 1
	}
	size := info.Size
	if size < 0 {
		size = 0
	}
	if size > 0xFFFFFFFF {
		size = 0xFFFFFFFF
	}
	binary.LittleEndian.PutUint32(rec[1:5], uint32(size))
	var mtime uint32
	if !info.ModTime.IsZero() && info.ModTime.Unix() > 0 {
		mtime = uint32(info.ModTime.Unix())
	}
	binary.LittleEndian.PutUint32(rec[5:9], mtime)
	return rec
}

func cutLast(s string, sep byte) (before, after string, found bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
