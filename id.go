// Package uid - id.go provides the strongly-typed ID wrapper with the
// encodings and codec interfaces the module's surfaces use.

package uid

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// ID is a strongly-typed identifier.
//
// The type implements json and text marshaling (string form, safe for
// JavaScript consumers that would truncate 64-bit numbers), sql.Scanner and
// driver.Valuer for database round trips, and compact base62 and hex
// renderings for URLs and logs.
type ID int64

// Encoding errors returned when parsing encoded IDs.
var (
	ErrInvalidBase62 = errors.New("invalid base62 encoding")
	ErrInvalidID     = errors.New("invalid id")
)

// base62Alphabet is the URL-safe 0-9a-zA-Z character set.
const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// decodeBase62Map gives O(1) character-to-value lookups, built once at init.
var decodeBase62Map [256]byte

func init() {
	for i := range decodeBase62Map {
		decodeBase62Map[i] = 0xFF
	}
	for i := 0; i < len(base62Alphabet); i++ {
		decodeBase62Map[base62Alphabet[i]] = byte(i)
	}
}

// Int64 returns the raw identifier.
func (id ID) Int64() int64 {
	return int64(id)
}

// Valid reports whether the identifier is positive, the only form the
// allocator emits.
func (id ID) Valid() bool {
	return id > 0
}

// String returns the decimal representation, implementing fmt.Stringer.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Hex returns the lowercase hexadecimal representation.
func (id ID) Hex() string {
	return strconv.FormatInt(int64(id), 16)
}

// Base62 returns the URL-safe base62 representation, at most 11 characters
// for a positive int64.
func (id ID) Base62() string {
	if id == 0 {
		return "0"
	}
	var buf [11]byte
	i := len(buf)
	n := uint64(id)
	for n > 0 {
		i--
		buf[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}

// Components decomposes the identifier under the given layout and epoch
// date. It returns nil when the identifier is not valid.
func (id ID) Components(layout BitLayout, epochPoint string) (*Components, error) {
	epoch, err := ParseEpochPoint(epochPoint)
	if err != nil {
		return nil, err
	}
	return layout.Parse(int64(id), epoch), nil
}

// ParseString parses a decimal identifier.
func ParseString(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(n), nil
}

// ParseBase62 parses a base62 identifier produced by Base62.
func ParseBase62(s string) (ID, error) {
	if s == "" || len(s) > 11 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBase62, s)
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		v := decodeBase62Map[s[i]]
		if v == 0xFF {
			return 0, fmt.Errorf("%w: %q", ErrInvalidBase62, s)
		}
		next := n*62 + uint64(v)
		if next < n || next > 1<<63-1 {
			return 0, fmt.Errorf("%w: overflow in %q", ErrInvalidBase62, s)
		}
		n = next
	}
	return ID(n), nil
}

// ParseHex parses a lowercase or uppercase hexadecimal identifier.
func ParseHex(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(n), nil
}

// MarshalJSON renders the identifier as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 21)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, int64(id), 10)
	buf = append(buf, '"')
	return buf, nil
}

// UnmarshalJSON accepts both the string form produced by MarshalJSON and a
// bare JSON number, for callers that stored the raw int64.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, data)
	}
	*id = ID(n)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	n, err := strconv.ParseInt(string(text), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, text)
	}
	*id = ID(n)
	return nil
}

// Scan implements sql.Scanner, accepting the integer, string and byte
// representations drivers commonly return.
func (id *ID) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*id = ID(v)
		return nil
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		return id.UnmarshalText(v)
	default:
		return fmt.Errorf("%w: unsupported scan type %T", ErrInvalidID, value)
	}
}

// Value implements driver.Valuer, storing the identifier as an int64.
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}
