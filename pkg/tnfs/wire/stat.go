package wire

import (
	"encoding/binary"
	"time"
)

// File mode type bits (POSIX).
const (
	ModeTypeMask uint16 = 0o170000
	ModeDir      uint16 = 0o040000
	ModeRegular  uint16 = 0o100000
)

// StatField names one field of the STAT reply.
type StatField int

const (
	StatMode StatField = iota
	StatUID
	StatGID
	StatSize
	StatATime
	StatMTime
	StatCTime
)

// StatFieldLayout is one (field, offset, width) entry of the STAT reply schema.
type StatFieldLayout struct {
	Field  StatField
	Offset int
	Width  int
}

// StatLayout is the binary layout of a successful STAT reply payload. Offsets
// are relative to the start of the payload, whose byte 0 is the result code.
//
// The layout is a fixed contract: servers that do not support a field leave
// it zero, and servers that omit trailing fields are compatible because
// missing fields decode as zero.
var StatLayout = []StatFieldLayout{
	{StatMode, 1, 2},
	{StatUID, 3, 2},
	{StatGID, 5, 2},
	{StatSize, 7, 4},
	{StatATime, 11, 4},
	{StatMTime, 15, 4},
	{StatCTime, 19, 4},
}

// statStringsOffset is where the optional NUL-terminated owner and group
// names begin.
const statStringsOffset = 23

// Stat is the decoded STAT reply. Zero values are legitimate: a server that
// does not track a field reports zero.
type Stat struct {
	Mode      uint16
	UID       uint16
	GID       uint16
	Size      uint32
	ATime     uint32
	MTime     uint32
	CTime     uint32
	UserName  string
	GroupName string
}

// IsDir reports whether the directory bit of the mode is set.
func (s Stat) IsDir() bool {
	return s.Mode&ModeDir != 0
}

// ModTime returns MTime as a time.Time.
func (s Stat) ModTime() time.Time {
	return time.Unix(int64(s.MTime), 0).UTC()
}

// ParseStat decodes a STAT reply payload following StatLayout. It never
// reads past len(payload).
func ParseStat(payload []byte) Stat {
	var st Stat
	for _, f := range StatLayout {
		var v uint32
		switch f.Width {
		case 2:
			v = uint32(readUint16(payload, f.Offset))
		case 4:
			v = readUint32(payload, f.Offset)
		}

		switch f.Field {
		case StatMode:
			st.Mode = uint16(v)
		case StatUID:
			st.UID = uint16(v)
		case StatGID:
			st.GID = uint16(v)
		case StatSize:
			st.Size = v
		case StatATime:
			st.ATime = v
		case StatMTime:
			st.MTime = v
		case StatCTime:
			st.CTime = v
		}
	}

	if len(payload) > statStringsOffset {
		rest := payload[statStringsOffset:]
		user := CString(rest)
		st.UserName = string(user)
		if len(user) < len(rest) {
			st.GroupName = string(CString(rest[len(user)+1:]))
		}
	}

	return st
}

// MarshalStat encodes st as a successful STAT reply payload. It is the
// inverse of ParseStat and is used by servers and test fixtures.
func MarshalStat(st Stat) []byte {
	buf := make([]byte, statStringsOffset, statStringsOffset+len(st.UserName)+len(st.GroupName)+2)
	buf[0] = byte(ResultSuccess)
	binary.LittleEndian.PutUint16(buf[1:], st.Mode)
	binary.LittleEndian.PutUint16(buf[3:], st.UID)
	binary.LittleEndian.PutUint16(buf[5:], st.GID)
	binary.LittleEndian.PutUint32(buf[7:], st.Size)
	binary.LittleEndian.PutUint32(buf[11:], st.ATime)
	binary.LittleEndian.PutUint32(buf[15:], st.MTime)
	binary.LittleEndian.PutUint32(buf[19:], st.CTime)
	if st.UserName != "" || st.GroupName != "" {
		buf = AppendString(buf, st.UserName)
		buf = AppendString(buf, st.GroupName)
	}
	return buf
}
