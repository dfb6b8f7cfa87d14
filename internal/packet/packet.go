package packet

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

type Type byte

const (
	TypeQuery Type = iota + 1
	TypeResponse

	TypeNone Type = 0
)

const (
	Version = 1

	// MaxNameLen is the largest name a single length byte can describe.
	MaxNameLen = 255

	// MaxReplyLen is the receive buffer size shared by client and server.
	MaxReplyLen = 512

	QueryHeaderLen    = 3
	ResponseHeaderLen = 5
)

var (
	ErrMalformed          = errors.New("malformed packet")
	ErrNameTooLong        = errors.New("name longer than 255 bytes")
	ErrInvalidName        = errors.New("name is not valid utf-8")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrWrongType          = errors.New("unexpected packet type")
)

func (t Type) String() string {
	switch t {
	case TypeQuery:
		return "query"
	case TypeResponse:
		return "response"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// putName appends the length prefixed name to buf.
func putName(buf []byte, name string) ([]byte, error) {
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("%w: got %d", ErrNameTooLong, len(name))
	}
	if !utf8.ValidString(name) {
		return nil, ErrInvalidName
	}
	buf = append(buf, byte(len(name)))
	return append(buf, name...), nil
}

// readName decodes l name bytes from the start of b.
func readName(b []byte, l int) (string, error) {
	if len(b) < l {
		return "", fmt.Errorf("%w: name needs %d bytes, got %d", ErrMalformed, l, len(b))
	}
	name := b[:l]
	if !utf8.Valid(name) {
		return "", fmt.Errorf("%w: %w", ErrMalformed, ErrInvalidName)
	}
	return string(name), nil
}
