package commands

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/pkg/netfs"
)

var statRecord bool

var statCmd = &cobra.Command{
	Use:   "stat LOCATOR",
	Short: "Show file or directory attributes",
	Long: `Show the attributes of a file or directory.

With --record the attributes are printed as the 9 byte record the device
returns for the stat special command (hex), followed by its decoding.`,
	Args: cobra.ExactArgs(1),
	RunE: runStat,
}

func init() {
	statCmd.Flags().BoolVar(&statRecord, "record", false, "print the device stat record")
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := newClient(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(ctx) }()

	return describe(c.withBackend(ctx, func(b netfs.Backend) error {
		st, ok := b.(netfs.Stater)
		if !ok {
			return fmt.Errorf("%w: %s backend has no stat", netfs.ErrNotImplemented, b.Scheme())
		}
		info, err := st.Stat(ctx, c.loc.Path)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if statRecord {
			rec := netfs.MarshalStatRecord(info)
			_, _ = fmt.Fprintf(w, "% x\n", rec[:])
			printTable(w, []string{"Dir", "Size", "Mtime"}, [][]string{{
				strconv.Itoa(int(rec[0])),
				strconv.FormatUint(uint64(binary.LittleEndian.Uint32(rec[1:5])), 10),
				formatTime(unixOrZero(binary.LittleEndian.Uint32(rec[5:9]))),
			}})
			return nil
		}
		printTable(w, []string{"Name", "Type", "Size", "Modified"}, entryRows([]netfs.FileInfo{info}))
		return nil
	}))
}

func unixOrZero(sec uint32) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}
