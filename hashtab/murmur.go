package hashtab

import (
	"encoding/binary"
	"unsafe"
)

const (
	murmurM = 0xc6a4a7935bd1e995
	murmurR = 47

	// DefaultSeed is the seed used by String, Bytes and Uint64.
	DefaultSeed = 0x9747b28c
)

// Murmur64 is the 64-bit MurmurHash2 variant (MurmurHash64A).
//
// It consumes 8-byte little-endian words and folds the remaining 1-7 bytes
// in the tail. It is fast on short keys such as field names and has no
// cryptographic strength.
func Murmur64(b []byte, seed uint64) uint64 {
	h := seed ^ (uint64(len(b)) * murmurM)
	for len(b) >= 8 {
		k := binary.LittleEndian.Uint64(b)
		k *= murmurM
		k ^= k >> murmurR
		k *= murmurM
		h ^= k
		h *= murmurM
		b = b[8:]
	}
	switch len(b) {
	case 7:
		h ^= uint64(b[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(b[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(b[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(b[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(b[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(b[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(b[0])
		h *= murmurM
	}
	h ^= h >> murmurR
	h *= murmurM
	h ^= h >> murmurR
	return h
}

// Bytes hashes b with DefaultSeed.
func Bytes(b []byte) uint64 {
	return Murmur64(b, DefaultSeed)
}

// String hashes s with DefaultSeed without copying it.
func String(s string) uint64 {
	return Murmur64(unsafe.Slice(unsafe.StringData(s), len(s)), DefaultSeed)
}

// Uint64 hashes the little-endian bytes of x.
func Uint64(x uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	return Murmur64(b[:], DefaultSeed)
}

// Pointer hashes the address p.
func Pointer(p unsafe.Pointer) uint64 {
	return Uint64(uint64(uintptr(p)))
}
