package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/pkg/netfs"
)

var mountCmd = &cobra.Command{
	Use:   "mount LOCATOR",
	Short: "Check that a server accepts a mount",
	Long: `Mount the server named by LOCATOR, report the result and unmount again.

For TNFS this performs the full session handshake; stateless backends
only validate the locator (and, for S3 with verify_bucket, the bucket).`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func runMount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := newClient(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(ctx) }()

	start := time.Now()
	err = c.withBackend(ctx, func(b netfs.Backend) error { return nil })
	if err != nil {
		return describe(err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mounted %s in %s\n", c.loc, time.Since(start).Round(time.Millisecond))
	return nil
}
