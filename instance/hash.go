package instance

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
)

// Hasher accumulates a content hash over ordered fields.
//
// Every write is length- or type-prefixed so that adjacent fields cannot
// alias (the arrays {1,2},{3} and {1},{2,3} hash differently). The zero
// value is not usable; use NewHasher.
type Hasher struct {
	h   hash.Hash64
	buf [8]byte
}

// NewHasher returns an FNV-1a 64 content hasher.
func NewHasher() *Hasher {
	return &Hasher{h: fnv.New64a()}
}

func (h *Hasher) write(b []byte) {
	_, _ = h.h.Write(b) // fnv.Write never returns an error
}

// Uint64 adds v.
func (h *Hasher) Uint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	h.write(h.buf[:])
	return h
}

// Int adds v.
func (h *Hasher) Int(v int) *Hasher { return h.Uint64(uint64(int64(v))) }

// Bool adds v.
func (h *Hasher) Bool(v bool) *Hasher {
	if v {
		return h.Uint64(1)
	}
	return h.Uint64(0)
}

// String adds s.
func (h *Hasher) String(s string) *Hasher {
	h.Uint64(uint64(len(s)))
	h.write([]byte(s))
	return h
}

// Int32s adds the elements of v in order.
func (h *Hasher) Int32s(v []int32) *Hasher {
	h.Uint64(uint64(len(v)))
	var b [4]byte
	for _, x := range v {
		binary.LittleEndian.PutUint32(b[:], uint32(x))
		h.write(b[:])
	}
	return h
}

// Float32s adds the bit patterns of v in order.
func (h *Hasher) Float32s(v []float32) *Hasher {
	h.Uint64(uint64(len(v)))
	var b [4]byte
	for _, x := range v {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(x))
		h.write(b[:])
	}
	return h
}

// Sum64 returns the hash of everything written so far.
func (h *Hasher) Sum64() uint64 { return h.h.Sum64() }

// Combine mixes two hashes in order.
func Combine(a, b uint64) uint64 {
	return NewHasher().Uint64(a).Uint64(b).Sum64()
}
