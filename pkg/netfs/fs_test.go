package netfs_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/netfs/pkg/netfs"
)

func mustLocator(t *testing.T, raw string) *netfs.Locator {
	t.Helper()
	loc, err := netfs.ParseLocator(raw)
	require.NoError(t, err)
	return loc
}

func openFrame(mode netfs.OpenMode) netfs.CommandFrame {
	return netfs.CommandFrame{Device: 0x71, Command: 'O', Aux1: byte(mode)}
}

func TestFS_DirectoryListing(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.dirs["/docs"] = true
	b.dirs["/docs/sub"] = true
	b.files["/docs/a.txt"] = []byte("hello")

	fs := netfs.NewFS(b, netfs.FSOptions{EOL: netfs.EOL})
	require.NoError(t, fs.Open(ctx, mustLocator(t, "N:MEM://host/docs"), openFrame(netfs.ModeDirectory)))

	want := "a.txt\x9bsub/\x9b"
	st, err := fs.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(want), st.BytesWaiting)
	assert.True(t, st.Connected)
	assert.Equal(t, netfs.StatusSuccess, st.Error)

	buf := make([]byte, 64)
	n, err := fs.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, want, string(buf[:n]))

	_, err = fs.Read(ctx, buf)
	assert.ErrorIs(t, err, io.EOF)

	st, err = fs.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.BytesWaiting)
	assert.Equal(t, netfs.StatusEndOfFile, st.Error)

	require.NoError(t, fs.Close(ctx))
	assert.Equal(t, 1, b.mounts)
	assert.Equal(t, 1, b.unmounts)
}

func TestFS_DirectoryListingDefaultEOL(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.files["/x"] = nil

	fs := netfs.NewFS(b, netfs.FSOptions{})
	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/"), openFrame(netfs.ModeDirectory)))

	buf := make([]byte, 16)
	n, err := fs.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(buf[:n]))
}

func TestFS_WriteToListingIsReadOnly(t *testing.T) {
	ctx := context.Background()
	fs := netfs.NewFS(newMemBackend(), netfs.FSOptions{})
	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/"), openFrame(netfs.ModeDirectory)))

	_, err := fs.Write(ctx, []byte("x"))
	assert.ErrorIs(t, err, netfs.ErrReadOnly)

	st, _ := fs.Status(ctx)
	assert.Equal(t, netfs.StatusReadOnly, st.Error)
}

func TestFS_ReadFile(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.files["/f.txt"] = []byte("hello world")

	fs := netfs.NewFS(b, netfs.FSOptions{})
	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/f.txt"), openFrame(netfs.ModeRead)))

	st, _ := fs.Status(ctx)
	assert.Equal(t, 11, st.BytesWaiting)

	buf := make([]byte, 5)
	n, err := fs.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	st, _ = fs.Status(ctx)
	assert.Equal(t, 6, st.BytesWaiting)

	_, err = fs.Write(ctx, []byte("x"))
	assert.ErrorIs(t, err, netfs.ErrReadOnly)
}

func TestFS_WriteFile(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()

	fs := netfs.NewFS(b, netfs.FSOptions{})
	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/new.txt"), openFrame(netfs.ModeWrite)))

	_, err := fs.Read(ctx, make([]byte, 4))
	assert.ErrorIs(t, err, netfs.ErrWriteOnly)
	st, _ := fs.Status(ctx)
	assert.Equal(t, netfs.StatusWriteOnly, st.Error)

	n, err := fs.Write(ctx, []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, fs.Close(ctx))
	assert.Equal(t, "data", string(b.files["/new.txt"]))
}

func TestFS_OpenInvalidMode(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	fs := netfs.NewFS(b, netfs.FSOptions{})

	err := fs.Open(ctx, mustLocator(t, "mem://host/"), netfs.CommandFrame{Aux1: 5})
	assert.ErrorIs(t, err, netfs.ErrInvalidCommand)
	assert.Equal(t, 0, b.mounts)

	st, _ := fs.Status(ctx)
	assert.Equal(t, netfs.StatusInvalidCommand, st.Error)
	assert.False(t, st.Connected)
}

func TestFS_OpenAppendNotImplemented(t *testing.T) {
	ctx := context.Background()
	fs := netfs.NewFS(newMemBackend(), netfs.FSOptions{})

	err := fs.Open(ctx, mustLocator(t, "mem://host/log"), openFrame(netfs.ModeAppend))
	assert.ErrorIs(t, err, netfs.ErrNotImplemented)

	st, _ := fs.Status(ctx)
	assert.Equal(t, netfs.StatusNotImplemented, st.Error)
}

func TestFS_OpenMissingFile(t *testing.T) {
	ctx := context.Background()
	fs := netfs.NewFS(newMemBackend(), netfs.FSOptions{})

	err := fs.Open(ctx, mustLocator(t, "mem://host/missing"), openFrame(netfs.ModeRead))
	assert.ErrorIs(t, err, netfs.ErrNotFound)

	st, _ := fs.Status(ctx)
	assert.Equal(t, netfs.StatusFileNotFound, st.Error)
}

func TestFS_OpenTwice(t *testing.T) {
	ctx := context.Background()
	fs := netfs.NewFS(newMemBackend(), netfs.FSOptions{})
	loc := mustLocator(t, "mem://host/")

	require.NoError(t, fs.Open(ctx, loc, openFrame(netfs.ModeDirectory)))
	assert.ErrorIs(t, fs.Open(ctx, loc, openFrame(netfs.ModeDirectory)), netfs.ErrAlreadyOpen)
}

func TestFS_NothingOpen(t *testing.T) {
	ctx := context.Background()
	fs := netfs.NewFS(newMemBackend(), netfs.FSOptions{})

	_, err := fs.Read(ctx, make([]byte, 1))
	assert.ErrorIs(t, err, netfs.ErrNotOpen)
	_, err = fs.Write(ctx, []byte{1})
	assert.ErrorIs(t, err, netfs.ErrNotOpen)

	st, err := fs.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, netfs.StatusNotConnected, st.Error)
	assert.Zero(t, st.BytesWaiting)

	// Nothing to release: Close succeeds.
	assert.NoError(t, fs.Close(ctx))
}

func TestFS_CloseReportsEveryFailure(t *testing.T) {
	ctx := context.Background()
	errUnmount := errors.New("unmount failed")
	b := newMemBackend()
	b.files["/f"] = []byte("x")
	b.closeErr = errClose
	b.unmountErr = errUnmount

	fs := netfs.NewFS(b, netfs.FSOptions{})
	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/f"), openFrame(netfs.ModeRead)))

	err := fs.Close(ctx)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.ErrorIs(t, err, errClose)
	assert.ErrorIs(t, err, errUnmount)

	// State is released regardless.
	assert.Equal(t, 1, b.unmounts)
	assert.Nil(t, fs.Locator())
	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/f"), openFrame(netfs.ModeRead)))
}

func TestFS_Remount(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	fs := netfs.NewFS(b, netfs.FSOptions{})
	frame := netfs.CommandFrame{Command: netfs.SpecialRemount}

	assert.ErrorIs(t, fs.SpecialNoPayload(ctx, frame), netfs.ErrNotOpen)

	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/"), openFrame(netfs.ModeDirectory)))
	require.NoError(t, fs.SpecialNoPayload(ctx, frame))

	assert.Equal(t, 2, b.mounts)
	assert.Equal(t, 1, b.unmounts)
	st, _ := fs.Status(ctx)
	assert.True(t, st.Connected)
}

func TestFS_StatRecord(t *testing.T) {
	ctx := context.Background()
	b := newFullBackend()
	b.files["/f.bin"] = []byte("12345")

	fs := netfs.NewFS(b, netfs.FSOptions{})
	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/f.bin"), openFrame(netfs.ModeRead)))

	frame := netfs.CommandFrame{Command: netfs.SpecialStat}
	buf := make([]byte, netfs.StatRecordSize)
	n, err := fs.SpecialToCaller(ctx, frame, buf)
	require.NoError(t, err)
	require.Equal(t, netfs.StatRecordSize, n)

	assert.Equal(t, byte(0), buf[0])
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[1:5]))
	assert.Equal(t, uint32(2000), binary.LittleEndian.Uint32(buf[5:9]))

	short := make([]byte, 3)
	n, err = fs.SpecialToCaller(ctx, frame, short)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, buf[:3], short)
}

func TestMarshalStatRecord_Directory(t *testing.T) {
	rec := netfs.MarshalStatRecord(netfs.FileInfo{IsDir: true, Size: 1 << 40})
	assert.Equal(t, byte(1), rec[0])
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(rec[1:5]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(rec[5:9]))
}

func TestFS_Rename(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"relative target", "N1:MEM://host/dir/old.txt,new.txt\x9b", "rename /dir/old.txt /dir/new.txt"},
		{"absolute target", "N:MEM://host/dir/old.txt,/other/new.txt\x9b", "rename /dir/old.txt /other/new.txt"},
		{"no prefix", "mem://host/dir/old.txt,new.txt", "rename /dir/old.txt /dir/new.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := newFullBackend()
			b.files["/dir/old.txt"] = []byte("x")

			fs := netfs.NewFS(b, netfs.FSOptions{})
			err := fs.SpecialToBackend(ctx, netfs.CommandFrame{Command: netfs.SpecialRename}, []byte(tt.payload))
			require.NoError(t, err)
			assert.Contains(t, b.Calls(), tt.want)
		})
	}
}

func TestFS_RenameNeedsTarget(t *testing.T) {
	ctx := context.Background()
	b := newFullBackend()
	fs := netfs.NewFS(b, netfs.FSOptions{})

	for _, payload := range []string{"N:MEM://host/a\x9b", "N:MEM://host/a,\x9b"} {
		err := fs.SpecialToBackend(ctx, netfs.CommandFrame{Command: netfs.SpecialRename}, []byte(payload))
		assert.ErrorIs(t, err, netfs.ErrInvalidDevicespec, payload)
	}
	assert.False(t, hasPrefix(b.Calls(), "rename"))
}

func TestFS_SpecialToBackendReusesMount(t *testing.T) {
	ctx := context.Background()
	b := newFullBackend()
	fs := netfs.NewFS(b, netfs.FSOptions{})

	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/"), openFrame(netfs.ModeDirectory)))
	require.NoError(t, fs.SpecialToBackend(ctx, netfs.CommandFrame{Command: netfs.SpecialMkDir}, []byte("N:MEM://host/new\x9b")))
	assert.Equal(t, 1, b.mounts)
	assert.True(t, b.dirs["/new"])

	// The open listing keeps its locator.
	assert.Equal(t, "/", fs.Locator().Path)
}

func TestFS_SpecialToBackendRefusesOtherEndpointWhileOpen(t *testing.T) {
	ctx := context.Background()
	b := newFullBackend()
	b.files["/a.txt"] = []byte("abc")
	fs := netfs.NewFS(b, netfs.FSOptions{})

	require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://hosta/a.txt"), openFrame(netfs.ModeRead)))

	err := fs.SpecialToBackend(ctx, netfs.CommandFrame{Command: netfs.SpecialMkDir}, []byte("N:MEM://hostb/new\x9b"))
	require.ErrorIs(t, err, netfs.ErrInvalidCommand)
	assert.Equal(t, 1, b.mounts)
	assert.Equal(t, 0, b.unmounts)
	assert.False(t, b.dirs["/new"])

	st, err := fs.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, netfs.StatusInvalidCommand, st.Error)
	assert.True(t, st.Connected)

	// The open file still reads from, and stats against, the first host.
	assert.Equal(t, "hosta", fs.Locator().Host)
	buf := make([]byte, 8)
	n, err := fs.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	_, err = fs.SpecialToCaller(ctx, netfs.CommandFrame{Command: netfs.SpecialStat}, make([]byte, netfs.StatRecordSize))
	require.NoError(t, err)
	assert.Equal(t, []string{"mount hosta", "open /a.txt read", "stat /a.txt"}, b.Calls())
}

func TestFS_SpecialToBackendSwitchesEndpointWhenIdle(t *testing.T) {
	ctx := context.Background()
	b := newFullBackend()
	fs := netfs.NewFS(b, netfs.FSOptions{})

	require.NoError(t, fs.SpecialToBackend(ctx, netfs.CommandFrame{Command: netfs.SpecialMkDir}, []byte("N:MEM://hosta/x\x9b")))
	require.NoError(t, fs.SpecialToBackend(ctx, netfs.CommandFrame{Command: netfs.SpecialMkDir}, []byte("N:MEM://hostb/y\x9b")))
	assert.Equal(t, 2, b.mounts)
	assert.Equal(t, 1, b.unmounts)
	assert.Equal(t, "hostb", fs.Locator().Host)
}

func TestFS_DirectoryCache(t *testing.T) {
	ctx := context.Background()
	b := newFullBackend()
	b.dirs["/d"] = true
	b.files["/d/a"] = []byte("x")
	cache := newMapCache()

	fs := netfs.NewFS(b, netfs.FSOptions{Cache: cache})
	list := func() string {
		t.Helper()
		require.NoError(t, fs.Open(ctx, mustLocator(t, "mem://host/d"), openFrame(netfs.ModeDirectory)))
		buf := make([]byte, 64)
		n, err := fs.Read(ctx, buf)
		require.NoError(t, err)
		require.NoError(t, fs.Close(ctx))
		return string(buf[:n])
	}

	assert.Equal(t, "a\n", list())
	assert.Equal(t, 1, b.readDirs)

	assert.Equal(t, "a\n", list())
	assert.Equal(t, 1, b.readDirs, "second listing must be served from cache")

	require.NoError(t, fs.SpecialToBackend(ctx, netfs.CommandFrame{Command: netfs.SpecialMkDir}, []byte("N:MEM://host/d/e\x9b")))
	assert.Contains(t, cache.invalidated, "mem://host:0/d/e")
	assert.Contains(t, cache.invalidated, "mem://host:0/d")

	assert.Equal(t, "a\ne/\n", list())
	assert.Equal(t, 2, b.readDirs)
}
