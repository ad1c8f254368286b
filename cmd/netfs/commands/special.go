package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/pkg/netfs"
)

// specialSpec describes a command that maps onto one device special command.
type specialSpec struct {
	use   string
	short string
	cmd   byte
	args  int
}

var specials = []specialSpec{
	{"mkdir LOCATOR", "Create a directory", netfs.SpecialMkDir, 1},
	{"rmdir LOCATOR", "Remove an empty directory", netfs.SpecialRmDir, 1},
	{"rm LOCATOR", "Delete a file", netfs.SpecialDelete, 1},
	{"mv LOCATOR NEWNAME", "Rename a file; NEWNAME is relative to the file's directory", netfs.SpecialRename, 2},
	{"lock LOCATOR", "Lock a file", netfs.SpecialLock, 1},
	{"unlock LOCATOR", "Unlock a file", netfs.SpecialUnlock, 1},
}

func specialCmds() []*cobra.Command {
	out := make([]*cobra.Command, 0, len(specials))
	for _, s := range specials {
		out = append(out, newSpecialCmd(s))
	}
	return out
}

func newSpecialCmd(s specialSpec) *cobra.Command {
	return &cobra.Command{
		Use:   s.use,
		Short: s.short,
		Args:  cobra.ExactArgs(s.args),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newClient(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = c.Close(ctx) }()

			payload := args[0]
			if s.cmd == netfs.SpecialRename {
				payload += "," + args[1]
			}
			payload += string([]byte{netfs.EOL})

			frame := netfs.CommandFrame{Command: s.cmd}
			class, _, err := netfs.Dispatch(ctx, c.fs, frame, []byte(payload), nil)
			if err != nil {
				return describe(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", c.loc, class)
			return nil
		},
	}
}
