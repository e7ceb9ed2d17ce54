// Package digest computes the Aerospike key digest and derives the owning
// partition id from it (spec §4.2). The digest is RIPEMD-160 over the set
// name, a one-byte particle-type tag, and the key body; the partition id is
// the little-endian u32 formed from the digest's first four bytes, masked to
// the 4096-slot partition space.
//
// Grounded on core/sharding.go's shardOfAddr (hash bytes, slice a fixed
// width, mask to a shard count) generalized to RIPEMD-160 and 4096 slots per
// spec, rather than sharding.go's SHA-256/1024-shard scheme.
package digest

import (
	"encoding/binary"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required wire format, not a generic hash choice
)

// ParticleTag is the one-byte tag written into the digest ahead of the key
// body, identifying which of the three admitted user-key variants follows.
type ParticleTag byte

const (
	TagInteger ParticleTag = 1
	TagString  ParticleTag = 3
	TagBlob    ParticleTag = 4
)

// NumPartitions is the fixed partition-space size every namespace's
// partition map is divided into (spec §3).
const NumPartitions = 4096

const partitionMask = NumPartitions - 1

// Size is the digest length in bytes.
const Size = 20

// Compute returns the 20-byte RIPEMD-160 digest of setName || tag || body.
func Compute(setName string, tag ParticleTag, body []byte) [Size]byte {
	h := ripemd160.New()
	_, _ = h.Write([]byte(setName))
	_, _ = h.Write([]byte{byte(tag)})
	_, _ = h.Write(body)

	var out [Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeInt64 digests an integer user key, writing its body as 8-byte
// big-endian regardless of the original Go integer width (spec §8 scenario 1:
// all integer widths carrying the same value produce the same digest).
func ComputeInt64(setName string, key int64) [Size]byte {
	var body [8]byte
	binary.BigEndian.PutUint64(body[:], uint64(key))
	return Compute(setName, TagInteger, body[:])
}

// ComputeString digests a UTF-8 string user key.
func ComputeString(setName, key string) [Size]byte {
	return Compute(setName, TagString, []byte(key))
}

// ComputeBlob digests a raw byte-slice user key.
func ComputeBlob(setName string, key []byte) [Size]byte {
	return Compute(setName, TagBlob, key)
}

// PartitionID derives the owning partition id from a digest: the digest's
// first four bytes interpreted as a little-endian u32, masked to [0,4096).
// The bit-mask form is required by spec §4.2 over modulo, which is both
// slower and, for signed interpretations on some platforms, incorrect.
func PartitionID(d [Size]byte) uint16 {
	idx := binary.LittleEndian.Uint32(d[0:4])
	return uint16(idx & partitionMask)
}
