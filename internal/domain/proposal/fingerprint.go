package proposal

import (
	"encoding/json"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a stable 64-bit hash of a proposal's semantic content.
// Two proposals with the same kind, payload, and reasoning hash identically
// regardless of payload map iteration order. The orchestration loop uses
// fingerprints to skip duplicate proposals within a single evaluation run.
func Fingerprint(p ActionProposal) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(string(p.Kind))
	_, _ = h.Write([]byte{0}) // separator

	// Payload keys in sorted order for determinism.
	keys := make([]string, 0, len(p.Payload))
	for k := range p.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.Write([]byte{'='})
		v, _ := json.Marshal(p.Payload[k])
		_, _ = h.Write(v)
		_, _ = h.Write([]byte{0})
	}

	_, _ = h.WriteString(p.Reasoning)
	return h.Sum64()
}
