package wire

import "fmt"

// ResultCode is the server's semantic outcome for a completed request.
//
// On the wire it is a single byte (the first payload byte of a reply). The Go
// type is wider so ResultTransactionFailed can sit outside the wire range and
// never be confused with anything a server sent.
type ResultCode int

// Result codes as defined by the TNFS protocol. Values mirror POSIX errno
// names.
const (
	ResultSuccess           ResultCode = 0x00
	ResultNotPermitted      ResultCode = 0x01 // EPERM
	ResultNotFound          ResultCode = 0x02 // ENOENT
	ResultIOError           ResultCode = 0x03 // EIO
	ResultNoSuchDevice      ResultCode = 0x04 // ENXIO
	ResultListTooLong       ResultCode = 0x05 // E2BIG
	ResultBadHandle         ResultCode = 0x06 // EBADF
	ResultTryAgain          ResultCode = 0x07 // EAGAIN
	ResultOutOfMemory       ResultCode = 0x08 // ENOMEM
	ResultAccessDenied      ResultCode = 0x09 // EACCES
	ResultBusy              ResultCode = 0x0A // EBUSY
	ResultExists            ResultCode = 0x0B // EEXIST
	ResultNotADirectory     ResultCode = 0x0C // ENOTDIR
	ResultIsADirectory      ResultCode = 0x0D // EISDIR
	ResultInvalidArgument   ResultCode = 0x0E // EINVAL
	ResultTableOverflow     ResultCode = 0x0F // ENFILE
	ResultTooManyOpen       ResultCode = 0x10 // EMFILE
	ResultTooLarge          ResultCode = 0x11 // EFBIG
	ResultNoSpace           ResultCode = 0x12 // ENOSPC
	ResultCannotSeek        ResultCode = 0x13 // ESPIPE
	ResultReadOnlyFS        ResultCode = 0x14 // EROFS
	ResultNameTooLong       ResultCode = 0x15 // ENAMETOOLONG
	ResultUnimplemented     ResultCode = 0x16 // ENOSYS
	ResultNotEmpty          ResultCode = 0x17 // ENOTEMPTY
	ResultTooManySymlinks   ResultCode = 0x18 // ELOOP
	ResultNoData            ResultCode = 0x19 // ENODATA
	ResultOutOfStreams      ResultCode = 0x1A // ENOSTR
	ResultProtocolError     ResultCode = 0x1B // EPROTO
	ResultBadDescriptor     ResultCode = 0x1C // EBADFD
	ResultTooManyUsers      ResultCode = 0x1D // EUSERS
	ResultOutOfBuffers      ResultCode = 0x1E // ENOBUFS
	ResultAlreadyInProgress ResultCode = 0x1F // EALREADY
	ResultStaleHandle       ResultCode = 0x20 // ESTALE
	ResultEndOfFile         ResultCode = 0x21 // EOF
	ResultInvalidHandle     ResultCode = 0xFF

	// ResultUnknown stands for any byte the protocol does not define.
	ResultUnknown ResultCode = 0x100

	// ResultTransactionFailed is reported by operations that return a raw
	// result code when no reply was received at all.
	ResultTransactionFailed ResultCode = -1
)

var resultNames = map[ResultCode]string{
	ResultSuccess:           "SUCCESS",
	ResultNotPermitted:      "EPERM",
	ResultNotFound:          "ENOENT",
	ResultIOError:           "EIO",
	ResultNoSuchDevice:      "ENXIO",
	ResultListTooLong:       "E2BIG",
	ResultBadHandle:         "EBADF",
	ResultTryAgain:          "EAGAIN",
	ResultOutOfMemory:       "ENOMEM",
	ResultAccessDenied:      "EACCES",
	ResultBusy:              "EBUSY",
	ResultExists:            "EEXIST",
	ResultNotADirectory:     "ENOTDIR",
	ResultIsADirectory:      "EISDIR",
	ResultInvalidArgument:   "EINVAL",
	ResultTableOverflow:     "ENFILE",
	ResultTooManyOpen:       "EMFILE",
	ResultTooLarge:          "EFBIG",
	ResultNoSpace:           "ENOSPC",
	ResultCannotSeek:        "ESPIPE",
	ResultReadOnlyFS:        "EROFS",
	ResultNameTooLong:       "ENAMETOOLONG",
	ResultUnimplemented:     "ENOSYS",
	ResultNotEmpty:          "ENOTEMPTY",
	ResultTooManySymlinks:   "ELOOP",
	ResultNoData:            "ENODATA",
	ResultOutOfStreams:      "ENOSTR",
	ResultProtocolError:     "EPROTO",
	ResultBadDescriptor:     "EBADFD",
	ResultTooManyUsers:      "EUSERS",
	ResultOutOfBuffers:      "ENOBUFS",
	ResultAlreadyInProgress: "EALREADY",
	ResultStaleHandle:       "ESTALE",
	ResultEndOfFile:         "EOF",
	ResultInvalidHandle:     "EINVALHANDLE",
	ResultUnknown:           "UNKNOWN",
	ResultTransactionFailed: "TRANSACTION_FAILED",
}

var resultDescriptions = map[ResultCode]string{
	ResultSuccess:           "Success",
	ResultNotPermitted:      "Operation not permitted",
	ResultNotFound:          "No such file or directory",
	ResultIOError:           "I/O error",
	ResultNoSuchDevice:      "No such device or address",
	ResultListTooLong:       "Argument list too long",
	ResultBadHandle:         "Bad file number",
	ResultTryAgain:          "Try again",
	ResultOutOfMemory:       "Out of memory",
	ResultAccessDenied:      "Permission denied",
	ResultBusy:              "Device or resource busy",
	ResultExists:            "File exists",
	ResultNotADirectory:     "Is not a directory",
	ResultIsADirectory:      "Is a directory",
	ResultInvalidArgument:   "Invalid argument",
	ResultTableOverflow:     "File table overflow",
	ResultTooManyOpen:       "Too many open files",
	ResultTooLarge:          "File too large",
	ResultNoSpace:           "No space left on device",
	ResultCannotSeek:        "Attempt to seek on a FIFO or pipe",
	ResultReadOnlyFS:        "Read only filesystem",
	ResultNameTooLong:       "Filename too long",
	ResultUnimplemented:     "Function not implemented",
	ResultNotEmpty:          "Directory not empty",
	ResultTooManySymlinks:   "Too many symbolic links",
	ResultNoData:            "No data available",
	ResultOutOfStreams:      "Out of streams resources",
	ResultProtocolError:     "Protocol error",
	ResultBadDescriptor:     "File descriptor in bad state",
	ResultTooManyUsers:      "Too many users",
	ResultOutOfBuffers:      "No buffer space available",
	ResultAlreadyInProgress: "Operation already in progress",
	ResultStaleHandle:       "Stale TNFS handle",
	ResultEndOfFile:         "End of file",
	ResultInvalidHandle:     "Invalid TNFS handle",
	ResultUnknown:           "Unknown result code",
	ResultTransactionFailed: "No reply from server",
}

// ResultFromByte maps a result byte received from a server onto the closed
// set of result codes. Bytes the protocol does not define become
// ResultUnknown.
func ResultFromByte(b byte) ResultCode {
	r := ResultCode(b)
	if _, ok := resultNames[r]; ok {
		return r
	}
	return ResultUnknown
}

// String returns the errno style name, e.g. "ENOENT".
func (r ResultCode) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", int(r))
}

// Description returns a human readable explanation of the code.
func (r ResultCode) Description() string {
	if desc, ok := resultDescriptions[r]; ok {
		return desc
	}
	return resultDescriptions[ResultUnknown]
}
