// Package viseme defines the mouth-shape category set and the
// phoneme-to-viseme mapping used by the synchronization engine.
package viseme

import (
	"fmt"
)

// ID is a mouth-shape category index. The renderer receives one weight
// slot per ID, in order.
type ID int

// The default 14-category set. OpenVowel..Silence map one-to-one onto the
// renderer's mouth controls; Silence doubles as the rest state.
const (
	OpenVowel    ID = 0  // AH, AA, AY - wide open jaw
	RoundedVowel ID = 1  // AO, AW, OW, OY - open with lip rounding
	MidVowel     ID = 2  // EH, ER, EY - relaxed mid position
	WideVowel    ID = 3  // IH, IY - spread lips
	TightVowel   ID = 4  // UH, UW - pursed lips
	Bilabial     ID = 5  // B, P, M - lips together
	Labiodental  ID = 6  // F, V - teeth on lip
	Dental       ID = 7  // TH, DH - tongue between teeth
	Alveolar     ID = 8  // T, D, N, L, R - tongue behind teeth
	Sibilant     ID = 9  // S, Z - teeth together
	PostAlveolar ID = 10 // SH, ZH, CH, JH - puckered narrow
	Velar        ID = 11 // K, G, NG - back of tongue
	Glottal      ID = 12 // HH, Y, W - glottal and approximants
	Silence      ID = 13 // rest, neutral
)

// DefaultCount is the size of the default category set.
const DefaultCount = 14

// Map is the configuration table from phoneme symbol to viseme category.
// It also carries the shape tags the emotion modulator keys on: categories
// whose visual shape is dominated by jaw openness, and categories dominated
// by lip rounding.
type Map struct {
	Count     int           `json:"count"`
	Neutral   ID            `json:"neutral"`
	Symbols   map[string]ID `json:"symbols"`
	OpenTags  []ID          `json:"open_tags"`
	RoundTags []ID          `json:"round_tags"`
}

// DefaultMap returns the standard ARPAbet table used by the TTS backend.
func DefaultMap() *Map {
	return &Map{
		Count:   DefaultCount,
		Neutral: Silence,
		Symbols: map[string]ID{
			// Vowels
			"AH": OpenVowel, "AA": OpenVowel, "AY": OpenVowel, "AE": OpenVowel,
			"AO": RoundedVowel, "AW": RoundedVowel, "OW": RoundedVowel, "OY": RoundedVowel,
			"EH": MidVowel, "ER": MidVowel, "EY": MidVowel,
			"IH": WideVowel, "IY": WideVowel,
			"UH": TightVowel, "UW": TightVowel,

			// Consonants
			"B": Bilabial, "P": Bilabial, "M": Bilabial,
			"F": Labiodental, "V": Labiodental,
			"TH": Dental, "DH": Dental,
			"T": Alveolar, "D": Alveolar, "N": Alveolar, "L": Alveolar, "R": Alveolar,
			"S": Sibilant, "Z": Sibilant,
			"SH": PostAlveolar, "ZH": PostAlveolar, "CH": PostAlveolar, "JH": PostAlveolar,
			"K": Velar, "G": Velar, "NG": Velar,
			"HH": Glottal, "Y": Glottal, "W": Glottal,

			// Silence markers emitted by aligners
			"SIL": Silence, "SP": Silence, "": Silence,
		},
		OpenTags:  []ID{OpenVowel, MidVowel, WideVowel, Glottal},
		RoundTags: []ID{RoundedVowel, TightVowel, PostAlveolar},
	}
}

// Lookup resolves a phoneme symbol to its category. Unknown symbols fall
// back to the neutral category; upstream aligners routinely emit symbols
// outside the configured table.
func (m *Map) Lookup(symbol string) ID {
	if id, ok := m.Symbols[symbol]; ok {
		return id
	}
	return m.Neutral
}

// IsOpen reports whether the category carries the openness tag.
func (m *Map) IsOpen(id ID) bool {
	for _, t := range m.OpenTags {
		if t == id {
			return true
		}
	}
	return false
}

// IsRounded reports whether the category carries the roundness tag.
func (m *Map) IsRounded(id ID) bool {
	for _, t := range m.RoundTags {
		if t == id {
			return true
		}
	}
	return false
}

// Validate checks the map for configuration errors. A mismatch here is a
// programming error and must fail at load time, never at tick time.
func (m *Map) Validate() error {
	if m.Count <= 0 {
		return fmt.Errorf("viseme map: count must be positive, got %d", m.Count)
	}
	if m.Neutral < 0 || int(m.Neutral) >= m.Count {
		return fmt.Errorf("viseme map: neutral category %d outside [0,%d)", m.Neutral, m.Count)
	}
	if len(m.Symbols) == 0 {
		return fmt.Errorf("viseme map: empty symbol table")
	}
	for sym, id := range m.Symbols {
		if id < 0 || int(id) >= m.Count {
			return fmt.Errorf("viseme map: symbol %q maps to category %d outside [0,%d)", sym, id, m.Count)
		}
	}
	for _, id := range m.OpenTags {
		if id < 0 || int(id) >= m.Count {
			return fmt.Errorf("viseme map: open tag %d outside [0,%d)", id, m.Count)
		}
	}
	for _, id := range m.RoundTags {
		if id < 0 || int(id) >= m.Count {
			return fmt.Errorf("viseme map: round tag %d outside [0,%d)", id, m.Count)
		}
	}
	return nil
}
