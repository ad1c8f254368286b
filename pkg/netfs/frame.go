package netfs

import "fmt"

// CommandFrame carries the device command byte and its auxiliary
// parameters.
type CommandFrame struct {
	Device  byte
	Command byte
	Aux1    byte
	Aux2    byte
}

// OpenMode is the access mode requested in Aux1 of an open command.
type OpenMode byte

const (
	ModeRead      OpenMode = 4
	ModeDirectory OpenMode = 6
	ModeWrite     OpenMode = 8
	ModeAppend    OpenMode = 9
	ModeReadWrite OpenMode = 12
)

// ParseOpenMode validates aux1 as an OpenMode.
func ParseOpenMode(aux1 byte) (OpenMode, error) {
	switch m := OpenMode(aux1); m {
	case ModeRead, ModeDirectory, ModeWrite, ModeAppend, ModeReadWrite:
		return m, nil
	default:
		return 0, fmt.Errorf("%w: open mode %d", ErrInvalidCommand, aux1)
	}
}

// IsDir reports whether the mode opens a directory listing.
func (m OpenMode) IsDir() bool { return m == ModeDirectory }

// CanRead reports whether Read is allowed in this mode.
func (m OpenMode) CanRead() bool {
	return m == ModeRead || m == ModeDirectory || m == ModeReadWrite
}

// CanWrite reports whether Write is allowed in this mode.
func (m OpenMode) CanWrite() bool {
	return m == ModeWrite || m == ModeAppend || m == ModeReadWrite
}

func (m OpenMode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeDirectory:
		return "directory"
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	case ModeReadWrite:
		return "read/write"
	default:
		return fmt.Sprintf("mode(%d)", byte(m))
	}
}
