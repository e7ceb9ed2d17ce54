package value

import (
	"fmt"

	"github.com/aerokit-io/aerokit/internal/digest"
)

// Key identifies a single record: a namespace, an optional set, the original
// user key (kept around for server-side predicate rewriting and for
// diagnostics) and its eagerly computed digest. Grounded on
// original_source/src/key.rs's Key struct, which likewise carries both the
// UserKey and its digest rather than recomputing on demand.
type Key struct {
	Namespace string
	Set       string
	UserKey   Value
	Digest    [digest.Size]byte
}

// NewKey builds a Key from a namespace, set and user key value, computing its
// digest immediately. Only Int, String and Blob user keys are admitted (spec
// §3); any other Kind is a configuration error the caller should surface
// before ever reaching the wire.
func NewKey(namespace, set string, userKey Value) (Key, error) {
	var d [digest.Size]byte
	switch userKey.Kind() {
	case KindInt:
		i, _ := userKey.Int()
		d = digest.ComputeInt64(set, i)
	case KindString:
		s, _ := userKey.String()
		d = digest.ComputeString(set, s)
	case KindBlob:
		b, _ := userKey.Blob()
		d = digest.ComputeBlob(set, b)
	default:
		return Key{}, fmt.Errorf("value: key kind %v is not an admitted user key type", userKey.Kind())
	}
	return Key{Namespace: namespace, Set: set, UserKey: userKey, Digest: d}, nil
}

// PartitionID returns the partition this key's digest maps to within its
// namespace's 4096-slot partition space.
func (k Key) PartitionID() uint16 { return digest.PartitionID(k.Digest) }

// Bin is a single named value within a record (spec §3).
type Bin struct {
	Name  string
	Value Value
}

func NewBin(name string, v Value) Bin { return Bin{Name: name, Value: v} }

// Record is the full set of bins plus server-assigned metadata returned by a
// read (spec §3).
type Record struct {
	Key        Key
	Bins       map[string]Value
	Generation uint32
	Expiration uint32
}
