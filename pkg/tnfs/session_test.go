package tnfs_test

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/netfs/pkg/tnfs"
	"github.com/marmos91/netfs/pkg/tnfs/tnfstest"
	"github.com/marmos91/netfs/pkg/tnfs/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMounted(t *testing.T, srv *tnfstest.Server, opts tnfs.Options) (*tnfs.Session, *tnfstest.Transport, *tnfstest.Clock) {
	t.Helper()
	s, tr, clock := newSession(t, srv.Handle, opts)
	require.NoError(t, s.Mount(context.Background(), "/"))
	return s, tr, clock
}

func TestMountStoresNegotiatedParameters(t *testing.T) {
	srv := tnfstest.NewServer()
	srv.SessionID = 0x1234
	srv.MinRetryMS = 300

	s, tr, _ := newSession(t, srv.Handle, tnfs.Options{User: "example", Password: "password"})
	require.NoError(t, s.Mount(context.Background(), "/home/tnfs"))

	assert.True(t, s.Mounted())
	assert.Equal(t, uint16(0x1234), s.SessionID())
	assert.Equal(t, wire.NewVersion(2, 6), s.ServerVersion())
	assert.Equal(t, 300*time.Millisecond, s.MinRetryInterval())
	assert.Equal(t, "/home/tnfs", s.MountPath())

	mounts := srv.Mounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, wire.ClientVersion, mounts[0].Version)
	assert.Equal(t, "/home/tnfs", mounts[0].Path)
	assert.Equal(t, "example", mounts[0].User)
	assert.Equal(t, "password", mounts[0].Password)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint16(0), sent[0].SessionID, "MOUNT is sent without a session")
}

func TestMountFailureLeavesSessionUnestablished(t *testing.T) {
	srv := tnfstest.NewServer()
	srv.MountResult = wire.ResultAccessDenied

	s, _, _ := newSession(t, srv.Handle, tnfs.Options{})
	err := s.Mount(context.Background(), "/")

	var re *tnfs.ResultError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, wire.ResultAccessDenied, re.Code)
	assert.Equal(t, wire.ResultAccessDenied, tnfs.ResultOf(err))
	assert.False(t, s.Mounted())
	assert.Zero(t, s.SessionID())
}

func TestMountTransportFailure(t *testing.T) {
	s, _, _ := newSession(t, nil, tnfs.Options{MaxRetries: 2})
	err := s.Mount(context.Background(), "/")

	assert.True(t, tnfs.IsTransport(err))
	assert.False(t, s.Mounted())
}

func TestMountThenUnmountClearsState(t *testing.T) {
	srv := tnfstest.NewServer()
	srv.AddDir("/games")
	s, tr, _ := newMounted(t, srv, tnfs.Options{})

	require.NoError(t, s.OpenDir(context.Background(), "/games"))
	require.NoError(t, s.Unmount(context.Background()))

	assert.Zero(t, s.SessionID())
	_, open := s.DirectoryHandle()
	assert.False(t, open)
	assert.Equal(t, 0, srv.ActiveSessions())

	sent := tr.Sent()
	last := sent[len(sent)-1]
	assert.Equal(t, wire.CmdUnmount, last.Command)
	assert.Equal(t, uint16(0xBEEF), last.SessionID)
}

func TestUnmountClearsStateOnServerRejection(t *testing.T) {
	srv := tnfstest.NewServer()
	s, _, _ := newMounted(t, srv, tnfs.Options{})
	srv.UnmountResult = wire.ResultIOError

	err := s.Unmount(context.Background())
	assert.Equal(t, wire.ResultIOError, tnfs.ResultOf(err))
	assert.False(t, s.Mounted())
}

func TestUnmountClearsStateOnTransportFailure(t *testing.T) {
	srv := tnfstest.NewServer()
	s, tr, _ := newMounted(t, srv, tnfs.Options{MaxRetries: 2})
	tr.DropReplies(10)

	err := s.Unmount(context.Background())
	assert.True(t, tnfs.IsTransport(err))
	assert.False(t, s.Mounted())
}

func TestUnmountWhenNotMounted(t *testing.T) {
	s, tr, _ := newSession(t, okHandler, tnfs.Options{})
	assert.ErrorIs(t, s.Unmount(context.Background()), tnfs.ErrNotMounted)
	assert.Empty(t, tr.Sent())
}

func TestRemountUnmountsFirst(t *testing.T) {
	srv := tnfstest.NewServer()
	s, tr, _ := newMounted(t, srv, tnfs.Options{})

	require.NoError(t, s.Mount(context.Background(), "/other"))

	var cmds []wire.Command
	for _, p := range tr.Sent() {
		cmds = append(cmds, p.Command)
	}
	assert.Equal(t, []wire.Command{wire.CmdMount, wire.CmdUnmount, wire.CmdMount}, cmds)
	assert.Equal(t, uint16(0), tr.Sent()[2].SessionID, "session id zeroed before MOUNT")
	assert.Equal(t, "/other", s.MountPath())
	assert.Equal(t, 1, srv.ActiveSessions())
}

func TestRemountProceedsWhenUnmountFails(t *testing.T) {
	srv := tnfstest.NewServer()
	s, _, _ := newMounted(t, srv, tnfs.Options{})
	srv.UnmountResult = wire.ResultIOError

	require.NoError(t, s.Mount(context.Background(), "/"))
	assert.True(t, s.Mounted())
}

func TestMinRetryIntervalFromServerIsApplied(t *testing.T) {
	srv := tnfstest.NewServer()
	srv.MinRetryMS = 400
	s, tr, clock := newMounted(t, srv, tnfs.Options{MaxRetries: 3})
	tr.DropReplies(1)

	_, err := s.Stat(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{400 * time.Millisecond}, clock.Sleeps())
}

func TestOperationsRequireMount(t *testing.T) {
	s, tr, _ := newSession(t, okHandler, tnfs.Options{})
	ctx := context.Background()

	assert.ErrorIs(t, s.OpenDir(ctx, "/"), tnfs.ErrNotMounted)
	_, err := s.ReadDir(ctx, make([]byte, 8))
	assert.ErrorIs(t, err, tnfs.ErrNotMounted)
	assert.ErrorIs(t, s.CloseDir(ctx), tnfs.ErrNotMounted)
	code, err := s.MkDir(ctx, "/x")
	assert.ErrorIs(t, err, tnfs.ErrNotMounted)
	assert.Equal(t, wire.ResultTransactionFailed, code)
	_, err = s.Stat(ctx, "/")
	assert.ErrorIs(t, err, tnfs.ErrNotMounted)

	assert.Empty(t, tr.Sent())
}
