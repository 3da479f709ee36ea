// Package header merges per-file observation metadata into one canonical
// record per observation. Fields identical across every contributing file
// stay in the merged header; fields that differ are demoted into an
// ordered SUBHEADERS list with one override row per file.
package header

import (
	"strings"
)

// Header is one file's worth of header cards. Keys follow header-card
// convention and are stored case-sensitively; lookups through Card are
// case-insensitive.
type Header = map[string]any

// SubHeadersKey names the reserved per-file override list. It is never
// treated as mergeable data, whatever its spelling in the input.
const SubHeadersKey = "SUBHEADERS"

// Raw is one file's record as handed over by the upstream source. The
// merge engine copies it shallowly on entry; callers keep ownership.
type Raw struct {
	Header   Header `json:"header"`
	Filename string `json:"filename,omitempty"`
	// FrameSet is an opaque coordinate-transform object. It is never
	// merged, only forwarded from the first record that supplies one.
	FrameSet any `json:"-"`
}

// isReserved reports whether a key names the sub-header list.
func isReserved(key string) bool {
	return strings.EqualFold(key, SubHeadersKey)
}

// isAbsent reports whether a value counts as absent. A nil card value and
// a missing card are treated uniformly.
func isAbsent(v any, present bool) bool {
	return !present || v == nil
}

// copyHeader returns a shallow copy with any reserved key dropped.
func copyHeader(h Header) Header {
	out := make(Header, len(h))
	for k, v := range h {
		if isReserved(k) {
			continue
		}
		out[k] = v
	}
	return out
}
