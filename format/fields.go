package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// BigTIFF field type codes used by the writer.
const (
	tByte  = 1
	tAscii = 2
	tShort = 3
	tLong  = 4
	tLong8 = 16
)

// tagData accumulates entry data too large for a BigTIFF tag's 8 inline
// bytes; Offset is the file position the accumulated bytes will land at.
type tagData struct {
	bytes.Buffer
	Offset uint64
}

func (t *tagData) NextOffset() uint64 {
	return t.Offset + uint64(t.Buffer.Len())
}

// arrayFieldSize returns the total BigTIFF footprint of an array-valued
// field: 20 bytes for the entry, plus overflow when the payload exceeds the
// 8 inline bytes.
func arrayFieldSize(data interface{}) uint64 {
	switch d := data.(type) {
	case []uint16:
		if len(d) <= 4 {
			return 20
		}
		return 20 + 2*uint64(len(d))
	case []uint64:
		if len(d) <= 1 {
			return 20
		}
		return 20 + 8*uint64(len(d))
	case string:
		if len(d) <= 7 {
			return 20
		}
		return 20 + uint64(len(d)) + 1
	default:
		panic("wrong type")
	}
}

// writeField emits one scalar BigTIFF IFD entry.
func (wr *Writer) writeField(w io.Writer, tag uint16, data interface{}) error {
	var buf [20]byte
	wr.enc.PutUint16(buf[0:2], tag)
	switch d := data.(type) {
	case uint16:
		wr.enc.PutUint16(buf[2:4], tShort)
		wr.enc.PutUint64(buf[4:12], 1)
		wr.enc.PutUint16(buf[12:], d)
	case uint32:
		wr.enc.PutUint16(buf[2:4], tLong)
		wr.enc.PutUint64(buf[4:12], 1)
		wr.enc.PutUint32(buf[12:], d)
	case uint64:
		wr.enc.PutUint16(buf[2:4], tLong8)
		wr.enc.PutUint64(buf[4:12], 1)
		wr.enc.PutUint64(buf[12:], d)
	default:
		panic("unsupported type")
	}
	_, err := w.Write(buf[:])
	return err
}

// writeArray emits one array-valued BigTIFF IFD entry, spilling payloads
// larger than 8 bytes into the overflow area.
func (wr *Writer) writeArray(w io.Writer, tag uint16, data interface{}, overflow *tagData) error {
	var buf [20]byte
	wr.enc.PutUint16(buf[0:2], tag)
	switch d := data.(type) {
	case []uint16:
		n := len(d)
		wr.enc.PutUint16(buf[2:4], tShort)
		wr.enc.PutUint64(buf[4:12], uint64(n))
		if n <= 4 {
			for i := 0; i < n; i++ {
				wr.enc.PutUint16(buf[12+i*2:], d[i])
			}
		} else {
			wr.enc.PutUint64(buf[12:], overflow.NextOffset())
			for i := 0; i < n; i++ {
				if err := binary.Write(overflow, wr.enc, d[i]); err != nil {
					return err
				}
			}
		}
	case []uint64:
		n := len(d)
		wr.enc.PutUint16(buf[2:4], tLong8)
		wr.enc.PutUint64(buf[4:12], uint64(n))
		if n == 1 {
			wr.enc.PutUint64(buf[12:], d[0])
		} else {
			wr.enc.PutUint64(buf[12:], overflow.NextOffset())
			for i := 0; i < n; i++ {
				if err := binary.Write(overflow, wr.enc, d[i]); err != nil {
					return err
				}
			}
		}
	case string:
		n := len(d) + 1
		wr.enc.PutUint16(buf[2:4], tAscii)
		wr.enc.PutUint64(buf[4:12], uint64(n))
		if n <= 8 {
			copy(buf[12:], d)
		} else {
			wr.enc.PutUint64(buf[12:], overflow.NextOffset())
			overflow.Write(append([]byte(d), 0))
		}
	default:
		return fmt.Errorf("unsupported array type %T", data)
	}
	_, err := w.Write(buf[:])
	return err
}
