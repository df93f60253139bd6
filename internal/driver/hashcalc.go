package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// Digest is a fixed 256-bit content hash.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports an unset digest.
func (d Digest) IsZero() bool { return d == Digest{} }

// digestOptions are the request fields that change the dump. Jobs and the
// observers do not.
type digestOptions struct {
	Dump             uint16
	Triple           string
	PtrSize          uint32
	Deny             []string
	IncludeTemplates bool
	MaxDiagnostics   int
}

// RequestDigest hashes the snapshot together with the options that affect
// the output.
func RequestDigest(req Request) (Digest, error) {
	h := sha256.New()
	enc := msgpack.NewEncoder(h)
	if err := enc.Encode(req.Snapshot); err != nil {
		return Digest{}, err
	}
	deny := slices.Clone(req.Deny)
	slices.Sort(deny)
	opts := digestOptions{
		Dump:             DumpSchema,
		Triple:           req.Target.Triple,
		PtrSize:          req.Target.PtrSize,
		Deny:             slices.Compact(deny),
		IncludeTemplates: req.IncludeTemplates,
		MaxDiagnostics:   req.MaxDiagnostics,
	}
	if err := enc.Encode(&opts); err != nil {
		return Digest{}, err
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}
