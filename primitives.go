package zipcore

import (
	"encoding/binary"
	"time"
)

// readBuf is a cursor over a byte slice that consumes little-endian fields
// as they're read, the same slicing idiom the teacher's reader.go uses.
type readBuf []byte

func (b *readBuf) uint8() uint8 {
	v := (*b)[0]
	*b = (*b)[1:]
	return v
}

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

func (b *readBuf) sub(n int) readBuf {
	b2 := (*b)[:n]
	*b = (*b)[n:]
	return b2
}

// writeBuf is the symmetric counterpart of readBuf, used to lay out fixed
// records before a single Write call.
type writeBuf []byte

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}

func (b *writeBuf) uint64(v uint64) {
	binary.LittleEndian.PutUint64(*b, v)
	*b = (*b)[8:]
}

func (b *writeBuf) bytes(p []byte) {
	copy(*b, p)
	*b = (*b)[len(p):]
}

// version packs the (major, minor, compat) triple ZIP stores in a single
// u16: the host-compatibility byte in the high byte, and major*10+minor%10
// in the low byte.
type version struct {
	major, minor, compat uint8
}

func (v version) encode() uint16 {
	return uint16(v.compat)<<8 | uint16((v.major*10+v.minor%10)&0xFF)
}

func decodeVersion(v uint16) version {
	low := uint8(v & 0xFF)
	return version{major: low / 10, minor: low % 10, compat: uint8(v >> 8)}
}

// timeToDOS converts a wall-clock time into the (date, time) pair ZIP's
// local/central headers store, clamping years before 1980 (DOS-time has no
// representation for them) to the epoch.
func timeToDOS(t time.Time) (date, dosTime uint16) {
	year := t.Year()
	if year < 1980 {
		year = 1980
	}
	date = uint16((year-1980)<<9 | int(t.Month())<<5 | t.Day())
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return date, dosTime
}

// dosToTime inverts timeToDOS at 2-second resolution, in UTC since DOS-time
// carries no timezone information.
func dosToTime(date, dosTime uint16) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month(date>>5&0xf),
		int(date&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f)*2,
		0,
		time.UTC,
	)
}
