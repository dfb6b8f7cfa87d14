package packet

import "fmt"

// Query asks the server whether it is quiet time for Whoami.
type Query struct {
	Version byte
	Type    Type
	Whoami  string
}

func NewQuery(whoami string) Query {
	return Query{Version: Version, Type: TypeQuery, Whoami: whoami}
}

// Marshal encodes the query as version, type, name length and name bytes.
func (q Query) Marshal() ([]byte, error) {
	buf := make([]byte, 0, QueryHeaderLen+len(q.Whoami))
	buf = append(buf, q.Version, byte(q.Type))

	buf, err := putName(buf, q.Whoami)
	if err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return buf, nil
}

func ParseQuery(b []byte) (Query, error) {
	if len(b) < QueryHeaderLen {
		return Query{}, fmt.Errorf("%w: query needs %d bytes, got %d", ErrMalformed, QueryHeaderLen, len(b))
	}

	if b[0] != Version {
		return Query{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[0])
	}

	if Type(b[1]) != TypeQuery {
		return Query{}, fmt.Errorf("%w: %v", ErrWrongType, Type(b[1]))
	}

	whoami, err := readName(b[QueryHeaderLen:], int(b[2]))
	if err != nil {
		return Query{}, fmt.Errorf("whoami: %w", err)
	}

	return Query{Version: b[0], Type: Type(b[1]), Whoami: whoami}, nil
}
