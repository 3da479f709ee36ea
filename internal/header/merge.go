package header

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eaobservatory/omp-cli/internal/translate"
)

// Filename cards tried, in order, when a record carries no filename.
const (
	primaryFileCard  = "FILE_ID"
	fallbackFileCard = "FILENAME"
)

// numericRe is the shape a string must match for a field to be compared
// numerically rather than textually: optional sign, decimal digits with
// optional fraction, optional scientific exponent. FITS-style D exponents
// are accepted alongside E. Infinities, NaN spellings and hex are not
// numbers for merge purposes.
var numericRe = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eEdD][+-]?[0-9]+)?$`)

// contrib is one file's contribution to an observation bucket.
type contrib struct {
	hdr      Header
	filename string
	obsidss  string
	frameset any
}

// Merge groups per-file records by observation identity and reduces each
// group to one MergedObservation. Records whose identity cannot be
// derived are dropped with a warning; the batch continues. Returns nil,
// not an empty map, when nothing merged, so callers can tell "nothing to
// merge" from "merged to nothing".
func Merge(recs []Raw, reg translate.Registry) (map[string]*MergedObservation, error) {
	buckets := make(map[string][]contrib)
	var order []string

	for i, rec := range recs {
		hdr := copyHeader(rec.Header)

		tr, ok := reg.Identify(hdr)
		if !ok {
			zap.L().Warn("header: no translator for record, skipping",
				zap.Int("index", i),
				zap.String("filename", rec.Filename),
			)
			continue
		}

		obsid, err := tr.ObsID(hdr)
		if err != nil {
			zap.L().Warn("header: identity derivation failed, skipping",
				zap.Int("index", i),
				zap.String("instrument", tr.Instrument()),
				zap.Error(err),
			)
			continue
		}

		c := contrib{hdr: hdr, frameset: rec.FrameSet}
		c.filename = recordFilename(rec, hdr)
		if c.filename == "" {
			// Backfill from the translator for headers written before the
			// filename cards existed.
			if fn, ok := tr.Filename(hdr); ok {
				c.filename = fn
			}
		}
		if ss, ok := tr.ObsIDSS(hdr); ok {
			c.obsidss = ss
		}

		if _, seen := buckets[obsid]; !seen {
			order = append(order, obsid)
		}
		buckets[obsid] = append(buckets[obsid], c)
	}

	if len(order) == 0 {
		return nil, nil
	}

	out := make(map[string]*MergedObservation, len(order))
	for _, obsid := range order {
		obs, err := mergeBucket(buckets[obsid])
		if err != nil {
			return nil, eris.Wrapf(err, "header: merge %s", obsid)
		}
		out[obsid] = obs
	}
	return out, nil
}

// recordFilename extracts a filename from the record or its header cards.
func recordFilename(rec Raw, hdr Header) string {
	if rec.Filename != "" {
		return rec.Filename
	}
	if s, ok := translate.CardString(hdr, primaryFileCard); ok {
		return s
	}
	if s, ok := translate.CardString(hdr, fallbackFileCard); ok {
		return s
	}
	return ""
}

// mergeBucket reduces one observation's contributing files to a single
// record: identical fields fold into the merged header, divergent fields
// move to per-file SUBHEADERS rows aligned with file order.
func mergeBucket(contribs []contrib) (*MergedObservation, error) {
	n := len(contribs)
	merged := copyHeader(contribs[0].hdr)

	if n > 1 {
		rows := make([]Header, n)
		diverged := false

		for _, key := range bucketKeys(contribs) {
			vals := make([]any, n)
			absent := make([]bool, n)
			for i, c := range contribs {
				v, present := c.hdr[key]
				vals[i] = v
				absent[i] = isAbsent(v, present)
			}

			if rep, same := foldValues(vals, absent); same {
				if rep != nil {
					merged[key] = rep
				} else {
					delete(merged, key)
				}
				continue
			}

			diverged = true
			delete(merged, key)
			for i := range contribs {
				if rows[i] == nil {
					rows[i] = make(Header)
				}
				if absent[i] {
					// Explicit absent marker, not a skipped key.
					rows[i][key] = nil
				} else {
					rows[i][key] = vals[i]
				}
			}
		}

		if diverged {
			for i := range rows {
				if rows[i] == nil {
					rows[i] = make(Header)
				}
			}
			merged[SubHeadersKey] = rows
		}
	}

	files := make([]any, 0, n)
	seenFile := make(map[string]bool, n)
	obsidssFiles := make(map[string]any)
	var frameset any

	for _, c := range contribs {
		if frameset == nil && c.frameset != nil {
			frameset = c.frameset
		}
		if c.filename == "" {
			continue
		}
		if !seenFile[c.filename] {
			seenFile[c.filename] = true
			files = append(files, c.filename)
		}
		if c.obsidss != "" {
			existing, _ := obsidssFiles[c.obsidss].([]string)
			obsidssFiles[c.obsidss] = appendUnique(existing, c.filename)
		}
	}

	values := map[string]any{
		"header":    merged,
		"filenames": files,
	}
	if len(obsidssFiles) > 0 {
		values["obsidss_files"] = obsidssFiles
	}
	if frameset != nil {
		values["frameset"] = frameset
	}
	return NewMergedObservation(values)
}

// bucketKeys collects every mergeable key appearing in any contributing
// header, first-seen across files, reserved key excluded. Comparison is
// case-sensitive per header-card convention.
func bucketKeys(contribs []contrib) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, c := range contribs {
		for k := range c.hdr {
			if seen[k] || isReserved(k) {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// foldValues applies the identical-or-diverge rule to one field's values
// across contributing files. It returns the representative value and true
// when the field folds: every value absent, or every non-absent value
// equal to the first non-absent one, numerically when that value looks
// like a number and textually otherwise.
func foldValues(vals []any, absent []bool) (any, bool) {
	first := -1
	for i := range vals {
		if !absent[i] {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, true
	}

	if f0, ok := numericValue(vals[first]); ok {
		for i := first + 1; i < len(vals); i++ {
			if absent[i] {
				continue
			}
			f, ok := numericValue(vals[i])
			if !ok || f != f0 {
				return nil, false
			}
		}
		return vals[first], true
	}

	s0 := stringValue(vals[first])
	for i := first + 1; i < len(vals); i++ {
		if absent[i] {
			continue
		}
		if stringValue(vals[i]) != s0 {
			return nil, false
		}
	}
	return vals[first], true
}

// numericValue reports whether a value looks like a number and, if so,
// its float64 reading. Strings qualify only when they match numericRe.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		if !numericRe.MatchString(n) {
			return 0, false
		}
		s := strings.Map(func(r rune) rune {
			if r == 'd' || r == 'D' {
				return 'e'
			}
			return r
		}, n)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
