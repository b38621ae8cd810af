package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNotScalar is returned when a uid or lockid is an object or array.
var ErrNotScalar = errors.New("proto: value must be a string or number")

// UID identifies a shared object. Clients may send a string or a number; both
// normalise to the same textual key, so "5" and 5 address one object.
type UID string

// UnmarshalJSON accepts strings, numbers and null (the empty uid).
func (u *UID) UnmarshalJSON(data []byte) error {
	text, err := scalarText(data)
	if err != nil {
		return err
	}
	*u = UID(text)
	return nil
}

// MarshalJSON always renders the uid as a JSON string.
func (u UID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(u))
}

// LockID is the opaque owner token of a shared object lock. The compact JSON
// literal is kept verbatim so numeric tokens stay numeric on the wire.
type LockID string

// Unlocked is the sentinel owner of an object nobody holds.
const Unlocked LockID = "-1"

// LockIDFromConn renders a connection identifier as a lock token.
func LockIDFromConn(id uint64) LockID {
	return LockID(strconv.FormatUint(id, 10))
}

// IsUnlocked reports whether the token is the unlocked sentinel.
func (l LockID) IsUnlocked() bool {
	return l == "" || l == Unlocked
}

// Normalize maps the zero token onto the unlocked sentinel.
func (l LockID) Normalize() LockID {
	if l == "" {
		return Unlocked
	}
	return l
}

// UnmarshalJSON stores a canonical scalar literal: numbers that compare
// equal ("1", "1.0", "1e0") share one form, as do equal strings. null reads
// as unlocked.
func (l *LockID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = Unlocked
		return nil
	}
	switch trimmed[0] {
	case '{', '[', 't', 'f':
		return ErrNotScalar
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		quoted, err := json.Marshal(s)
		if err != nil {
			return err
		}
		*l = LockID(quoted)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	text, err := canonicalNumber(n)
	if err != nil {
		return err
	}
	*l = LockID(text)
	return nil
}

// MarshalJSON writes the stored literal back out.
func (l LockID) MarshalJSON() ([]byte, error) {
	return []byte(l.Normalize()), nil
}

func scalarText(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[', 't', 'f':
		return "", ErrNotScalar
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", err
	}
	return canonicalNumber(n)
}

// canonicalNumber renders n the way a JavaScript client keys it: integral
// values below 1e21 in plain decimal, everything else in shortest form.
func canonicalNumber(n json.Number) (string, error) {
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("proto: number %s: %w", n, err)
	}
	if f == 0 {
		return "0", nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}
