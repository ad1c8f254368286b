package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/marmos91/netfs/pkg/config"
	"github.com/marmos91/netfs/pkg/netfs"
)

// client bundles what a command needs to talk to one locator.
type client struct {
	loc *netfs.Locator
	reg *netfs.Registry
	fs  *netfs.FS
	rt  *config.Runtime
}

// newClient builds the runtime and registry from the loaded configuration
// and returns an unopened Protocol for raw.
func newClient(ctx context.Context, raw string) (*client, error) {
	loc, err := netfs.ParseLocator(raw)
	if err != nil {
		return nil, err
	}

	rt, err := config.NewRuntime(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := config.InitializeRegistry(ctx, cfg, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	fs, err := reg.Protocol(loc)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return &client{loc: loc, reg: reg, fs: fs, rt: rt}, nil
}

// Close closes the Protocol and releases the runtime.
func (c *client) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := c.fs.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.rt.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// describe decorates err with the device status byte it maps to.
func describe(err error) error {
	if err == nil {
		return nil
	}
	kind := netfs.ErrorKindOf(err)
	return fmt.Errorf("%w (status %d: %s)", err, byte(kind), kind)
}

// withBackend mounts a fresh backend for c.loc, runs fn and unmounts.
func (c *client) withBackend(ctx context.Context, fn func(netfs.Backend) error) (err error) {
	b, err := c.reg.Backend(c.loc)
	if err != nil {
		return err
	}
	if err := b.Mount(ctx, c.loc); err != nil {
		return err
	}
	defer func() {
		if uerr := b.Unmount(ctx); uerr != nil && !errors.Is(uerr, netfs.ErrNotOpen) {
			err = multierror.Append(err, uerr).ErrorOrNil()
		}
	}()
	return fn(b)
}
