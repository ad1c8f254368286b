package wire

import "fmt"

// Command identifies a TNFS operation. It occupies byte 3 of the header.
type Command uint8

// Session commands.
const (
	CmdMount   Command = 0x00
	CmdUnmount Command = 0x01
)

// Directory commands.
const (
	CmdOpenDir  Command = 0x10
	CmdReadDir  Command = 0x11
	CmdCloseDir Command = 0x12
	CmdMkDir    Command = 0x13
	CmdRmDir    Command = 0x14
)

// File metadata commands.
const (
	CmdStat Command = 0x24
)

// MinSuccessReply is the shortest payload a success reply to c carries: the
// result byte plus every field the command always returns.
func (c Command) MinSuccessReply() int {
	switch c {
	case CmdOpenDir:
		return 2 // result, handle
	default:
		return 1
	}
}

// String returns the protocol name of the command, suitable for logs and
// metric labels.
func (c Command) String() string {
	switch c {
	case CmdMount:
		return "MOUNT"
	case CmdUnmount:
		return "UMOUNT"
	case CmdOpenDir:
		return "OPENDIR"
	case CmdReadDir:
		return "READDIR"
	case CmdCloseDir:
		return "CLOSEDIR"
	case CmdMkDir:
		return "MKDIR"
	case CmdRmDir:
		return "RMDIR"
	case CmdStat:
		return "STAT"
	default:
		return fmt.Sprintf("CMD_%02X", uint8(c))
	}
}
