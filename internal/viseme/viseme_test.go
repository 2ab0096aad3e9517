package viseme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMap(t *testing.T) {
	m := DefaultMap()

	require.NoError(t, m.Validate())
	assert.Equal(t, DefaultCount, m.Count)
	assert.Equal(t, Silence, m.Neutral)

	t.Run("known symbols", func(t *testing.T) {
		assert.Equal(t, Bilabial, m.Lookup("B"))
		assert.Equal(t, Bilabial, m.Lookup("P"))
		assert.Equal(t, OpenVowel, m.Lookup("AH"))
		assert.Equal(t, Sibilant, m.Lookup("S"))
		assert.Equal(t, Silence, m.Lookup("SIL"))
		assert.Equal(t, Silence, m.Lookup("SP"))
	})

	t.Run("unknown symbol falls back to neutral", func(t *testing.T) {
		assert.Equal(t, m.Neutral, m.Lookup("XYZZY"))
		assert.Equal(t, m.Neutral, m.Lookup("Q"))
	})

	t.Run("shape tags", func(t *testing.T) {
		assert.True(t, m.IsOpen(OpenVowel))
		assert.True(t, m.IsOpen(WideVowel))
		assert.False(t, m.IsOpen(Bilabial))
		assert.True(t, m.IsRounded(RoundedVowel))
		assert.True(t, m.IsRounded(TightVowel))
		assert.False(t, m.IsRounded(Silence))
	})
}

func TestMapValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Map)
		wantErr bool
	}{
		{"default is valid", func(*Map) {}, false},
		{"zero count", func(m *Map) { m.Count = 0 }, true},
		{"neutral out of range", func(m *Map) { m.Neutral = ID(m.Count) }, true},
		{"negative neutral", func(m *Map) { m.Neutral = -1 }, true},
		{"empty symbol table", func(m *Map) { m.Symbols = nil }, true},
		{"symbol out of range", func(m *Map) { m.Symbols["B"] = ID(m.Count + 3) }, true},
		{"open tag out of range", func(m *Map) { m.OpenTags = []ID{ID(m.Count)} }, true},
		{"round tag out of range", func(m *Map) { m.RoundTags = []ID{-2} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultMap()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
