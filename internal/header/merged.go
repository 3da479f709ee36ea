package header

import (
	"github.com/rotisserie/eris"

	"github.com/eaobservatory/omp-cli/internal/schema"
)

// obsSchema declares the attributes of a merged observation. The merge
// engine materializes its output through these generated accessors, so
// the same shape checks apply however a MergedObservation is built.
var obsSchema = schema.New(
	schema.Field{Name: "header", Kind: schema.Mapping},
	schema.Field{Name: "filenames", Kind: schema.Sequence},
	schema.Field{Name: "obsidss_files", Kind: schema.Mapping},
	schema.Field{Name: "frameset", Kind: schema.Any},
)

// MergedObservation is one observation reconstructed from every file that
// contributed to it.
type MergedObservation struct {
	rec *schema.Record
}

// NewMergedObservation builds a MergedObservation from a field-name/value
// mapping, the permissive construction mode: unknown keys are ignored.
func NewMergedObservation(values map[string]any) (*MergedObservation, error) {
	rec, err := obsSchema.NewRecord(values)
	if err != nil {
		return nil, eris.Wrap(err, "header: new merged observation")
	}
	return &MergedObservation{rec: rec}, nil
}

// Header returns the merged header. Divergent fields live under the
// SUBHEADERS key as ordered per-file override rows.
func (m *MergedObservation) Header() Header {
	return m.rec.Map("header")
}

// SubHeaders returns the per-file override rows, or nil when every field
// merged cleanly.
func (m *MergedObservation) SubHeaders() []Header {
	h := m.rec.Map("header")
	rows, _ := h[SubHeadersKey].([]Header)
	return rows
}

// Filenames returns every contributing filename, first-seen order,
// duplicates removed.
func (m *MergedObservation) Filenames() []string {
	seq := m.rec.Seq("filenames")
	out := make([]string, 0, len(seq))
	for _, v := range seq {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ObsIDSSFiles returns contributing filenames grouped by subsystem
// identity, for downstream code that needs sub-system file lists.
func (m *MergedObservation) ObsIDSSFiles() map[string][]string {
	raw := m.rec.Map("obsidss_files")
	if raw == nil {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		if files, ok := v.([]string); ok {
			out[k] = files
		}
	}
	return out
}

// FrameSet returns the forwarded coordinate-transform object, or nil.
func (m *MergedObservation) FrameSet() any {
	v, _ := m.rec.Get("frameset")
	return v
}
