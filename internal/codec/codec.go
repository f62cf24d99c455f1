// Package codec maps integer row ids to short public tokens and back.
//
// Tokens are salted hashids: not sequential, not guessable without the salt,
// and reversible by anyone holding it. Rotating the salt invalidates every
// token already handed out.
package codec

import (
	"errors"
	"fmt"
	"math"
)

import (
	hashids "github.com/speps/go-hashids/v2"
)

const (
	// MaxID is the largest id a token may carry.
	MaxID = math.MaxInt32
	// MaxTokenLength bounds what Decode will even look at.
	MaxTokenLength = 20

	defaultMinLength = 6
)

var ErrIDOutOfRange = errors.New("codec: id out of range")

// Codec encodes and decodes opaque ids. Safe for concurrent use.
type Codec struct {
	h         *hashids.HashID
	minLength int
}

func New(salt string, minLength int) (*Codec, error) {
	if salt == "" {
		return nil, errors.New("codec: empty salt")
	}
	if minLength <= 0 {
		minLength = defaultMinLength
	}
	if minLength > MaxTokenLength {
		return nil, fmt.Errorf("codec: min length %d exceeds %d", minLength, MaxTokenLength)
	}
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = minLength
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return &Codec{h: h, minLength: minLength}, nil
}

// Encode returns the token for id.
func (c *Codec) Encode(id int64) (string, error) {
	if id <= 0 || id > MaxID {
		return "", ErrIDOutOfRange
	}
	return c.h.EncodeInt64([]int64{id})
}

// Decode returns the id carried by token, or false for anything Encode
// could not have produced.
func (c *Codec) Decode(token string) (id int64, ok bool) {
	if len(token) < c.minLength || len(token) > MaxTokenLength || !alphanumeric(token) {
		return 0, false
	}
	defer func() {
		if recover() != nil {
			id, ok = 0, false
		}
	}()
	// DecodeInt64WithError re-encodes the result and compares, which
	// rejects tokens with a bad checksum or foreign characters.
	vals, err := c.h.DecodeInt64WithError(token)
	if err != nil || len(vals) != 1 {
		return 0, false
	}
	if vals[0] <= 0 || vals[0] > MaxID {
		return 0, false
	}
	return vals[0], true
}

func alphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		default:
			return false
		}
	}
	return true
}
