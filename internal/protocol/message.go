package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Envelope layout, mirroring the packed struct the property service
// reads: a 32-bit command word followed by two NUL-padded buffers.
// There is no length prefix and no version field; wire compatibility
// is purely by size.
const (
	// NameMax bounds a property name including its terminator.
	NameMax = 32
	// ValueMax bounds a property value including its terminator.
	ValueMax = 92
	// MessageSize is the exact byte size of every envelope on the wire.
	MessageSize = 4 + NameMax + ValueMax
)

// Command selects the service operation.
type Command uint32

const (
	CmdSet  Command = 1
	CmdGet  Command = 2
	CmdList Command = 3
)

func (c Command) String() string {
	switch c {
	case CmdSet:
		return "SETPROP"
	case CmdGet:
		return "GETPROP"
	case CmdList:
		return "LISTPROP"
	default:
		return fmt.Sprintf("Command(%d)", uint32(c))
	}
}

var (
	ErrNameTooLong  = errors.New("protocol: property name too long")
	ErrValueTooLong = errors.New("protocol: property value too long")
	ErrBadLength    = errors.New("protocol: envelope has wrong byte length")
)

// Message is one request or reply envelope. Name and Value hold the
// logical strings; NUL padding is applied on encode and stripped on
// decode.
type Message struct {
	Cmd   Command
	Name  string
	Value string
}

// Encode serializes the envelope into a fresh MessageSize buffer. The
// command word is little-endian: the service reads it as a native
// integer and every supported host is little-endian. Oversized fields
// are rejected, never truncated.
func (m Message) Encode() ([]byte, error) {
	if len(m.Name) >= NameMax {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrNameTooLong, len(m.Name), NameMax-1)
	}
	if len(m.Value) >= ValueMax {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrValueTooLong, len(m.Value), ValueMax-1)
	}
	buf := make([]byte, MessageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Cmd))
	copy(buf[4:4+NameMax], m.Name)
	copy(buf[4+NameMax:], m.Value)
	return buf, nil
}

// Decode parses exactly one envelope. Anything other than MessageSize
// bytes is a framing violation.
func Decode(b []byte) (Message, error) {
	if len(b) != MessageSize {
		return Message{}, fmt.Errorf("%w: got %d, want %d", ErrBadLength, len(b), MessageSize)
	}
	return Message{
		Cmd:   Command(binary.LittleEndian.Uint32(b[0:4])),
		Name:  cstring(b[4 : 4+NameMax]),
		Value: cstring(b[4+NameMax:]),
	}, nil
}

// cstring returns the bytes before the first NUL.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
