package commands

import (
	"bufio"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/pkg/netfs"
)

var putAppend bool

var catCmd = &cobra.Command{
	Use:   "cat LOCATOR",
	Short: "Print a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

var putCmd = &cobra.Command{
	Use:   "put LOCATOR",
	Short: "Write standard input to a file",
	Long: `Write standard input to a file, replacing it unless --append is given.

Examples:
  echo hello | netfs put https://example.com/dav/hello.txt
  netfs put --append s3://bucket/log.txt < more.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

func init() {
	putCmd.Flags().BoolVarP(&putAppend, "append", "a", false, "append instead of replacing")
}

func runCat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := newClient(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(ctx) }()

	if err := c.fs.Open(ctx, c.loc, netfs.CommandFrame{Command: 'O', Aux1: byte(netfs.ModeRead)}); err != nil {
		return describe(err)
	}
	data, err := drain(ctx, c.fs)
	_, _ = cmd.OutOrStdout().Write(data)
	return describe(err)
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := newClient(ctx, args[0])
	if err != nil {
		return err
	}

	mode := netfs.ModeWrite
	if putAppend {
		mode = netfs.ModeAppend
	}
	if err := c.fs.Open(ctx, c.loc, netfs.CommandFrame{Command: 'O', Aux1: byte(mode)}); err != nil {
		_ = c.Close(ctx)
		return describe(err)
	}

	r := bufio.NewReader(cmd.InOrStdin())
	buf := make([]byte, 256)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := c.fs.Write(ctx, buf[:n]); err != nil {
				_ = c.Close(ctx)
				return describe(err)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = c.Close(ctx)
			return rerr
		}
	}

	// Backends upload on close, so its error is the write result.
	return describe(c.Close(ctx))
}
