package netfs

import (
	"context"
	"fmt"
)

// DispatchClass is the payload direction of a special command, as reported
// to the host in DSTATS.
type DispatchClass byte

const (
	DispatchNone        DispatchClass = 0x00
	DispatchToCaller    DispatchClass = 0x40
	DispatchToBackend   DispatchClass = 0x80
	DispatchUnsupported DispatchClass = 0xFF
)

func (c DispatchClass) String() string {
	switch c {
	case DispatchNone:
		return "none"
	case DispatchToCaller:
		return "to-caller"
	case DispatchToBackend:
		return "to-backend"
	case DispatchUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("class(0x%02x)", byte(c))
	}
}

// Special command bytes understood by FS.
const (
	SpecialRename  byte = 0x20
	SpecialDelete  byte = 0x21
	SpecialLock    byte = 0x23
	SpecialUnlock  byte = 0x24
	SpecialMkDir   byte = 0x2A
	SpecialRmDir   byte = 0x2B
	SpecialRemount byte = 0x2E
	SpecialStat    byte = 0x30
)

// specialCommand binds a command byte to its dispatch class and the backend
// capability it needs. The same entry is used to answer SpecialInquiry and
// to route the call, so the two cannot disagree.
type specialCommand struct {
	name     string
	class    DispatchClass
	supports func(Backend) bool
}

var specialCommands = map[byte]specialCommand{
	SpecialRename:  {"rename", DispatchToBackend, implements[Renamer]},
	SpecialDelete:  {"delete", DispatchToBackend, implements[Remover]},
	SpecialLock:    {"lock", DispatchToBackend, implements[Locker]},
	SpecialUnlock:  {"unlock", DispatchToBackend, implements[Locker]},
	SpecialMkDir:   {"mkdir", DispatchToBackend, implements[DirMaker]},
	SpecialRmDir:   {"rmdir", DispatchToBackend, implements[DirRemover]},
	SpecialRemount: {"remount", DispatchNone, func(Backend) bool { return true }},
	SpecialStat:    {"stat", DispatchToCaller, implements[Stater]},
}

func implements[T any](b Backend) bool {
	_, ok := b.(T)
	return ok
}

// classify returns the dispatch class of cmd for backend b.
func classify(b Backend, cmd byte) (specialCommand, DispatchClass) {
	sc, ok := specialCommands[cmd]
	if !ok || b == nil || !sc.supports(b) {
		return sc, DispatchUnsupported
	}
	return sc, sc.class
}

// Dispatch runs a special command on p: it asks p for the command's class
// and invokes the single matching entry point.
//
// in is the payload received from the host (DispatchToBackend); out receives
// the payload for the host (DispatchToCaller). The number of bytes written
// to out is returned.
func Dispatch(ctx context.Context, p Protocol, frame CommandFrame, in, out []byte) (DispatchClass, int, error) {
	class := p.SpecialInquiry(frame.Command)
	switch class {
	case DispatchNone:
		return class, 0, p.SpecialNoPayload(ctx, frame)
	case DispatchToCaller:
		n, err := p.SpecialToCaller(ctx, frame, out)
		return class, n, err
	case DispatchToBackend:
		return class, 0, p.SpecialToBackend(ctx, frame, in)
	default:
		return DispatchUnsupported, 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedCommand, frame.Command)
	}
}
