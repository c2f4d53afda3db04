package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/frankenmichl/twopence"
)

// Header is a decoded frame header.
type Header struct {
	Type          twopence.PacketType
	Length        int // total frame length, header included
	TransactionID uint16
}

// PayloadLen returns the number of payload bytes (Length minus the header
// size for v).
func (h Header) PayloadLen(v twopence.ProtocolVersion) int {
	return h.Length - HeaderSize(v)
}

// ErrFrameTooShort is returned by Decode when the announced length is below
// the minimum legal frame length (the 4- or 6-byte header itself).
var ErrFrameTooShort = fmt.Errorf("protocol: frame length below header size")

// ErrFrameTooLong is returned by Encode when a payload would not fit under
// the configured MTU, and by Decode when the announced length exceeds the
// receiving buffer's capacity.
var ErrFrameTooLong = fmt.Errorf("protocol: frame length exceeds limit")

// Encode builds a complete frame (header + payload) into a freshly
// allocated Buffer. It fails with ErrFrameTooLong when payload would push
// the frame over mtu (header included).
//
// Security invariant: callers must reject an announced length below the
// header size or above the receive capacity before any further reads;
// Decode below enforces exactly that on the receive side.
func Encode(ps State, t twopence.PacketType, payload []byte, mtu int) (*Buffer, error) {
	hdrSize := ps.HeaderSize()
	total := hdrSize + len(payload)
	if total > mtu {
		return nil, ErrFrameTooLong
	}
	buf := NewBuffer(total)
	buf.ReserveHead(hdrSize)
	copy(buf.Tail(), payload)
	buf.Advance(len(payload))
	PushHeaderInPlace(buf, ps, t)
	return buf, nil
}

// PushHeaderInPlace fills the header bytes already reserved by
// buf.ReserveHead with ps and t, stamping the total frame length from the
// buffer's current payload count. This is the codec half of the "source
// reserves head room, reads payload, then the header is tacked on" pattern
// used throughout the engine.
func PushHeaderInPlace(buf *Buffer, ps State, t twopence.PacketType) {
	hdrSize := ps.HeaderSize()
	hdr := make([]byte, hdrSize)
	hdr[0] = byte(t)
	hdr[1] = 0 // reserved
	binary.BigEndian.PutUint16(hdr[2:4], uint16(hdrSize+buf.Count()))
	if ps.Version == twopence.VersionMultiplex {
		binary.BigEndian.PutUint16(hdr[4:6], ps.TransactionID)
	}
	buf.FillHead(hdr)
}

// Decode reads a header out of the front of data and returns it together
// with the payload slice (a view into data, not a copy). capacity is the
// size of the buffer data was read into, used for the over-length check;
// it is normally len(data) when the whole frame has already been read, but
// callers driving a partial, non-blocking read should pass the full
// recv-buffer capacity so an announced length that won't fit is rejected
// immediately.
func Decode(v twopence.ProtocolVersion, data []byte, capacity int) (Header, []byte, error) {
	hdrSize := HeaderSize(v)
	if len(data) < hdrSize {
		return Header{}, nil, ErrFrameTooShort
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length < hdrSize {
		return Header{}, nil, ErrFrameTooShort
	}
	if length > capacity {
		return Header{}, nil, ErrFrameTooLong
	}
	h := Header{Type: twopence.PacketType(data[0]), Length: length}
	if v == twopence.VersionMultiplex {
		if len(data) < 6 {
			return Header{}, nil, ErrFrameTooShort
		}
		h.TransactionID = binary.BigEndian.Uint16(data[4:6])
	}
	if len(data) < length {
		return h, nil, nil // header parsed, payload not fully read yet
	}
	return h, data[hdrSize:length], nil
}
