package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/pkg/netfs"
)

var lsLong bool

var lsCmd = &cobra.Command{
	Use:   "ls LOCATOR",
	Short: "List a directory",
	Long: `List a directory the way the device serves it: one entry per line,
directories suffixed with "/".

With --long the backend is asked for sizes and modification times and the
result is printed as a table.

Examples:
  netfs ls tnfs://tnfs.example.com/games/
  netfs ls -l s3://bucket/docs/`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "show size, type and modification time")
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := newClient(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(ctx) }()

	if lsLong {
		return describe(c.withBackend(ctx, func(b netfs.Backend) error {
			entries, err := b.ReadDir(ctx, c.loc.Path)
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), []string{"Name", "Type", "Size", "Modified"}, entryRows(entries))
			return nil
		}))
	}

	listing, err := readListing(ctx, c.fs, c.loc)
	if err != nil {
		return describe(err)
	}
	eol := cfg.Device.EOLByte()
	for _, line := range bytes.Split(listing, []byte{eol}) {
		if len(line) > 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(line))
		}
	}
	return nil
}

// readListing opens loc as a directory and drains it.
func readListing(ctx context.Context, p netfs.Protocol, loc *netfs.Locator) ([]byte, error) {
	if err := p.Open(ctx, loc, netfs.CommandFrame{Command: 'O', Aux1: byte(netfs.ModeDirectory)}); err != nil {
		return nil, err
	}
	return drain(ctx, p)
}

// drain reads p until end of file in device sized chunks.
func drain(ctx context.Context, p netfs.Protocol) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 256)
	for {
		n, err := p.Read(ctx, buf)
		out.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return out.Bytes(), err
		}
		if n == 0 {
			return out.Bytes(), nil
		}
	}
}

func entryRows(entries []netfs.FileInfo) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Name, entryType(e), strconv.FormatInt(e.Size, 10), formatTime(e.ModTime)})
	}
	return rows
}

func entryType(e netfs.FileInfo) string {
	if e.IsDir {
		return "dir"
	}
	return "file"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
