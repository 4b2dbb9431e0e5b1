package idb

import "github.com/dr0pdb/icecaneidb/pkg/storage"

// Mode is the access mode of a txn.
type Mode int

const (
	// ReadOnly txns can only read.
	ReadOnly Mode = iota

	// ReadWrite txns can read and write.
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "readonly"
	}
	return "readwrite"
}

// Options configures a Database.
type Options struct {
	// Comparator orders the keys of every object store of the db.
	// Defaults to byte wise ordering.
	Comparator storage.Comparator
}

// Record is a key-value pair returned by a scan.
type Record struct {
	Key   []byte
	Value []byte
}
