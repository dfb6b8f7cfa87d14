package packet

import "fmt"

// Response is the server's answer to a Query.
type Response struct {
	Version byte
	Type    Type

	// QuietByte is the is_quiet byte as received, IsQuiet is true only when it is exactly 1.
	QuietByte byte
	IsQuiet   bool

	// WakeUp is the number of hours until quiet time ends.
	WakeUp uint8
	Whoru  string
}

func NewResponse(quiet bool, wakeUp uint8, whoru string) Response {
	r := Response{Version: Version, Type: TypeResponse, IsQuiet: quiet, WakeUp: wakeUp, Whoru: whoru}
	if quiet {
		r.QuietByte = 1
	}
	return r
}

func (r Response) Marshal() ([]byte, error) {
	buf := make([]byte, 0, ResponseHeaderLen+len(r.Whoru))

	var quiet byte
	if r.IsQuiet {
		quiet = 1
	}
	buf = append(buf, r.Version, byte(r.Type), quiet, r.WakeUp)

	buf, err := putName(buf, r.Whoru)
	if err != nil {
		return nil, fmt.Errorf("whoru: %w", err)
	}
	return buf, nil
}

// ParseResponse decodes a reply. Version and type are reported as sent, any
// bytes after the name are ignored.
func ParseResponse(b []byte) (Response, error) {
	if len(b) < ResponseHeaderLen {
		return Response{}, fmt.Errorf("%w: reply needs %d bytes, got %d", ErrMalformed, ResponseHeaderLen, len(b))
	}

	whoru, err := readName(b[ResponseHeaderLen:], int(b[4]))
	if err != nil {
		return Response{}, fmt.Errorf("whoru: %w", err)
	}

	return Response{
		Version:   b[0],
		Type:      Type(b[1]),
		QuietByte: b[2],
		IsQuiet:   b[2] == 1,
		WakeUp:    b[3],
		Whoru:     whoru,
	}, nil
}
