package capability

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a stable digest of the set's declarations. Two sets
// with the same identity, operation signatures and signal signatures have
// the same fingerprint regardless of declaration order.
func (s Set) Fingerprint() string {
	ops := make([]string, len(s.operations))
	for i, op := range s.operations {
		ops[i] = op.Name + op.Signature()
	}
	sort.Strings(ops)

	sigs := make([]string, len(s.signals))
	for i, sig := range s.signals {
		sigs[i] = sig.String()
	}
	sort.Strings(sigs)

	var b strings.Builder
	b.WriteString("identity ")
	b.WriteString(s.identity)
	b.WriteByte('\n')
	for _, op := range ops {
		b.WriteString("op ")
		b.WriteString(op)
		b.WriteByte('\n')
	}
	for _, sig := range sigs {
		b.WriteString("signal ")
		b.WriteString(sig)
		b.WriteByte('\n')
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
