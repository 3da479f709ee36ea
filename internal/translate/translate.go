// Package translate selects per-instrument header translators. A
// translator derives the canonical observation identity, the optional
// subsystem identity, and a filename from one file's raw header cards.
package translate

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Translator maps one instrument's raw header cards to canonical values.
type Translator interface {
	Instrument() string
	// ObsID derives the observation identity key shared by every file
	// belonging to the same exposure.
	ObsID(hdr map[string]any) (string, error)
	// ObsIDSS derives the subsystem identity, when the instrument has one.
	ObsIDSS(hdr map[string]any) (string, bool)
	// Filename derives a filename for headers that do not carry one.
	Filename(hdr map[string]any) (string, bool)
}

// Registry answers which translator applies to a given header. Selection
// is per record: one batch may mix instruments.
type Registry interface {
	Identify(hdr map[string]any) (Translator, bool)
}

// Card fetches a header card value case-insensitively.
func Card(hdr map[string]any, name string) (any, bool) {
	if v, ok := hdr[name]; ok {
		return v, true
	}
	for k, v := range hdr {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// CardString fetches a header card as a trimmed string.
func CardString(hdr map[string]any, name string) (string, bool) {
	v, ok := Card(hdr, name)
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return "", false
	}
	return s, true
}

// profileTranslator implements Translator from a declarative Profile.
type profileTranslator struct {
	p Profile
}

func (t *profileTranslator) Instrument() string {
	return t.p.Instrument
}

func (t *profileTranslator) ObsID(hdr map[string]any) (string, error) {
	if t.p.ObsIDCard != "" {
		if s, ok := CardString(hdr, t.p.ObsIDCard); ok {
			return s, nil
		}
	}
	if len(t.p.Compose) == 0 {
		return "", eris.Errorf("translate: %s: no %s card and no compose rule",
			t.p.Instrument, t.p.ObsIDCard)
	}

	// Compose an identity from the configured cards, the convention the
	// raw data files use when no OBSID card was written.
	parts := make([]string, 0, len(t.p.Compose))
	for _, card := range t.p.Compose {
		s, ok := CardString(hdr, card)
		if !ok {
			return "", eris.Errorf("translate: %s: compose card %s missing",
				t.p.Instrument, card)
		}
		parts = append(parts, strings.ToLower(s))
	}
	return strings.Join(parts, "_"), nil
}

func (t *profileTranslator) ObsIDSS(hdr map[string]any) (string, bool) {
	if t.p.ObsIDSSCard == "" {
		return "", false
	}
	return CardString(hdr, t.p.ObsIDSSCard)
}

func (t *profileTranslator) Filename(hdr map[string]any) (string, bool) {
	if t.p.FilenameCard == "" {
		return "", false
	}
	return CardString(hdr, t.p.FilenameCard)
}
