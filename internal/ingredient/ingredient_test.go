package ingredient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Tomaten", "tomat"},
		{"Zwiebel", "zwiebel"},
		{"Brühe", "brüh"},
		{"Eie", "eie"},
		{"Kaffee", "kaff"},
		{"  Rote   Zwiebeln, gehackt ", "rote zwiebeln gehackt"},
		{"Salz (grob)", "salz grob"},
		{"...", ""},
		{"Öl", "öl"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Tomaten", "Kaffee", "Bohnenen", "Brühe", "1 Brühe", "Bouillon Würfel",
		"  Kartoffeln; festkochend ", "Crème fraîche", "Ü", "ee", "Eneen",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestCleanDisplay(t *testing.T) {
	assert.Equal(t, "2 EL Öl, kalt", CleanDisplay("  2  EL\tÖl,   kalt "))
}

func TestMatcher(t *testing.T) {
	items := []PantryItem{
		{Name: "Brühe", Aliases: []string{"Bouillon"}},
		{Name: "Zwiebeln", Uncertain: true},
		{Name: "Gemüsebrühe", Aliases: []string{"Brühe"}},
	}
	m := NewMatcher(items)

	t.Run("AliasesResolveToSameEntry", func(t *testing.T) {
		for _, raw := range []string{"Brühe", "Bouillon", "1 Brühe", "Bouillon Würfel"} {
			class, entry := m.Classify(Normalize(raw))
			assert.Equal(t, PantryUsed, class, raw)
			assert.Equal(t, "Brühe", entry.Name, raw)
		}
	})

	t.Run("FirstWriterWins", func(t *testing.T) {
		e, ok := m.Lookup(Normalize("Gemüsebrühe"))
		require.True(t, ok)
		assert.Equal(t, "Gemüsebrühe", e.Name)
		e, ok = m.Lookup(Normalize("Brühe"))
		require.True(t, ok)
		assert.Equal(t, "Brühe", e.Name)
	})

	t.Run("Uncertain", func(t *testing.T) {
		class, entry := m.Classify(Normalize("2 Zwiebeln"))
		assert.Equal(t, PantryUncertain, class)
		assert.Equal(t, "Zwiebeln", entry.Name)
	})

	t.Run("Buy", func(t *testing.T) {
		class, _ := m.Classify(Normalize("500 g Hackfleisch"))
		assert.Equal(t, Buy, class)
		class, _ = m.Classify("")
		assert.Equal(t, Buy, class)
		class, _ = m.Classify(Normalize("3"))
		assert.Equal(t, Buy, class)
	})

	t.Run("PhraseWithPantryWordIsBought", func(t *testing.T) {
		pantry := NewMatcher(DefaultPantry())
		for _, raw := range []string{
			"400 g Hähnchenbrust mit Reis",
			"1 Dose Tomaten mit Basilikum",
			"2 EL grüne Curry Paste",
			"Essig Gurken",
		} {
			class, _ := pantry.Classify(Normalize(raw))
			assert.Equal(t, Buy, class, raw)
		}

		class, entry := pantry.Classify(Normalize("1 Zehe Knoblauch"))
		assert.Equal(t, PantryUncertain, class)
		assert.Equal(t, "Knoblauch", entry.Name)
		class, entry = pantry.Classify(Normalize("1 TL Oregano, getrocknet"))
		assert.Equal(t, PantryUsed, class)
		assert.Equal(t, "Oregano", entry.Name)
	})

	t.Run("PartitionIsPure", func(t *testing.T) {
		for _, raw := range []string{"Brühe", "Tomaten", "2 Zwiebeln", "Bouillon Würfel"} {
			key := Normalize(raw)
			c1, _ := m.Classify(key)
			c2, _ := NewMatcher(items).Classify(key)
			assert.Equal(t, c1, c2)
			assert.Contains(t, []Class{Buy, PantryUsed, PantryUncertain}, c1)
		}
	})
}

func TestDefaultPantry(t *testing.T) {
	items := DefaultPantry()
	require.Len(t, items, 21)
	assert.Equal(t, "Salz", items[0].Name)

	m := NewMatcher(items)
	class, entry := m.Classify(Normalize("Nudeln"))
	assert.Equal(t, PantryUsed, class)
	assert.Equal(t, "Pasta", entry.Name)

	class, _ = m.Classify(Normalize("Knoblauch"))
	assert.Equal(t, PantryUncertain, class)
}

func TestCleanPantry(t *testing.T) {
	t.Run("TrimsAndDeduplicates", func(t *testing.T) {
		got, err := CleanPantry([]PantryItem{{Name: "  Salz ", Aliases: []string{" Meersalz", "", "Meersalz", "Fleur de Sel"}}})
		require.NoError(t, err)
		assert.Equal(t, []PantryItem{{Name: "Salz", Aliases: []string{"Meersalz", "Fleur de Sel"}}}, got)
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := CleanPantry([]PantryItem{{Name: "Salz"}, {Name: "  "}})
		assert.ErrorIs(t, err, ErrEmptyName)
	})
}
