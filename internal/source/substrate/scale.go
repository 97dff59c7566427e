package substrate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// reader is a minimal SCALE decoder covering the types the portfolio
// contract's events use: compact lengths, LE integers, strings, string
// vectors and 32-byte account ids.
type reader struct {
	buf []byte
	off int
}

var errShortPayload = errors.New("scale: payload truncated")

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, errShortPayload
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errShortPayload
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

// compact reads a SCALE compact-encoded unsigned integer.
func (r *reader) compact() (uint64, error) {
	first, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil
	case 0b01:
		second, err := r.byte()
		if err != nil {
			return 0, err
		}
		return (uint64(first) | uint64(second)<<8) >> 2, nil
	case 0b10:
		rest, err := r.bytes(3)
		if err != nil {
			return 0, err
		}
		v := uint64(first) | uint64(rest[0])<<8 | uint64(rest[1])<<16 | uint64(rest[2])<<24
		return v >> 2, nil
	default:
		n := int(first>>2) + 4
		if n > 8 {
			return 0, fmt.Errorf("scale: compact wider than u64 (%d bytes)", n)
		}
		raw, err := r.bytes(n)
		if err != nil {
			return 0, err
		}
		var v uint64
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(raw[i])
		}
		return v, nil
	}
}

func (r *reader) u8() (uint8, error) {
	b, err := r.byte()
	return b, err
}

func (r *reader) u32() (uint32, error) {
	raw, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func (r *reader) u64() (uint64, error) {
	raw, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw), nil
}

// u128 reads a 16-byte little-endian unsigned integer. Returned as big.Int
// because balances exceed uint64.
func (r *reader) u128() (*big.Int, error) {
	raw, err := r.bytes(16)
	if err != nil {
		return nil, err
	}
	be := make([]byte, 16)
	for i, b := range raw {
		be[15-i] = b
	}
	return new(big.Int).SetBytes(be), nil
}

func (r *reader) string() (string, error) {
	n, err := r.compact()
	if err != nil {
		return "", err
	}
	raw, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *reader) stringVec() ([]string, error) {
	n, err := r.compact()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// account reads a 32-byte account id, rendered as 0x-prefixed hex.
func (r *reader) account() (string, error) {
	raw, err := r.bytes(32)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0x%x", raw), nil
}
