package shopping

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in        string
		amount    float64
		hasAmount bool
		unit      string
		name      string
	}{
		{"500 g Mehl", 500, true, "g", "Mehl"},
		{"500g Mehl", 500, true, "g", "Mehl"},
		{"1,5 l Milch", 1.5, true, "l", "Milch"},
		{"2 EL. Olivenöl", 2, true, "EL", "Olivenöl"},
		{"1 1/2 TL Salz", 1.5, true, "TL", "Salz"},
		{"½ Zitrone", 0.5, true, "", "Zitrone"},
		{"1 ½ EL Öl", 1.5, true, "EL", "Öl"},
		{"zwei Zwiebeln", 2, true, "", "Zwiebeln"},
		{"3 Stk. Paprika", 3, true, "Stück", "Paprika"},
		{"2-3 Tomaten", 0, false, "", "Tomaten"},
		{"2–3 EL Öl", 0, false, "", "Öl"},
		{"Salz", 0, false, "", "Salz"},
		{"3x Eier", 0, false, "", "3x Eier"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q := ParseQuantity(tt.in)
			assert.InDelta(t, tt.amount, q.Amount, 1e-9)
			assert.Equal(t, tt.hasAmount, q.HasAmount)
			assert.Equal(t, tt.unit, q.Unit)
			assert.Equal(t, tt.name, q.Name)
		})
	}
}

func TestSplitCompound(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Salz; Pfeffer", []string{"Salz", "Pfeffer"}},
		{"Salz, Pfeffer", []string{"Salz", "Pfeffer"}},
		{"1,5 l Milch", []string{"1,5 l Milch"}},
		{"2 Eier und 3 Tomaten", []string{"2 Eier", "3 Tomaten"}},
		{"200 g Reis + 100 g Erbsen", []string{"200 g Reis", "100 g Erbsen"}},
		{"Salz und Pfeffer", []string{"Salz und Pfeffer"}},
		{"Mac and Cheese Gewürz", []string{"Mac and Cheese Gewürz"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitCompound(tt.in))
		})
	}
}

func TestMergeKey(t *testing.T) {
	assert.Equal(t, mergeKey("Tomaten"), mergeKey("frische Tomate"))
	assert.Equal(t, mergeKey("Zwiebeln"), mergeKey("kleine Zwiebel"))
	assert.Equal(t, mergeKey("Sahne"), mergeKey("frische Sahne"))
	assert.NotEqual(t, mergeKey("rote Zwiebel"), mergeKey("Zwiebel"))
}

func findLine(t *testing.T, lines []MergedLine, name string) MergedLine {
	t.Helper()
	for _, l := range lines {
		if l.Name == name {
			return l
		}
	}
	t.Fatalf("no merged line named %q in %+v", name, lines)
	return MergedLine{}
}

func TestPremergeSumsAmounts(t *testing.T) {
	out := Premerge([]string{"2 EL Öl", "500 g Mehl", "1 EL Öl", "1 kg Mehl"})
	require.Len(t, out, 2)

	oil := findLine(t, out, "Öl")
	assert.True(t, oil.HasAmount)
	assert.InDelta(t, 3, oil.Amount, 1e-9)
	assert.Equal(t, "EL", oil.Unit)
	assert.Equal(t, "3 EL Öl", oil.Text)
	assert.Equal(t, []int{0, 2}, oil.SourceIndexes)

	flour := findLine(t, out, "Mehl")
	assert.InDelta(t, 1500, flour.Amount, 1e-9)
	assert.Equal(t, "g", flour.Unit)
	assert.Equal(t, "1500 g Mehl", flour.Text)
	assert.Equal(t, []int{1, 3}, flour.SourceIndexes)
}

func TestPremergeDropsIncompatibleAmounts(t *testing.T) {
	out := Premerge([]string{"2 EL Zucker", "50 g Zucker", "1 Zwiebel", "Zwiebeln", "200 ml Sahne", "0,5 l Sahne"})

	sugar := findLine(t, out, "Zucker")
	assert.False(t, sugar.HasAmount)
	assert.Equal(t, "Zucker", sugar.Text)

	onion := findLine(t, out, "Zwiebel")
	assert.False(t, onion.HasAmount)
	assert.Equal(t, []int{2, 3}, onion.SourceIndexes)

	cream := findLine(t, out, "Sahne")
	assert.Equal(t, "700 ml Sahne", cream.Text)
}

func TestPremergeKeepsSingleLinesVerbatim(t *testing.T) {
	out := Premerge([]string{"  2-3   Tomaten ", "1,25 kg Kartoffeln"})
	require.Len(t, out, 2)
	assert.Equal(t, "2-3 Tomaten", out[0].Text)
	assert.Equal(t, "1,25 kg Kartoffeln", out[1].Text)
}

func TestPremergeOrder(t *testing.T) {
	out := Premerge([]string{"Zimt", "200 g Sahne", "Mehl", "Tomaten", "Hähnchenbrust", "Basilikum"})
	var texts []string
	for _, l := range out {
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"Hähnchenbrust", "Basilikum", "Tomaten", "Mehl", "200 g Sahne", "Zimt"}, texts)
}

func TestPremergeConservation(t *testing.T) {
	pool := []string{
		"2 EL Öl", "1 EL Öl", "500 g Mehl", "1 kg Mehl", "Salz; Pfeffer", "2 Eier und 1 Zwiebel",
		"Zwiebeln", "3 Tomaten", "frische Tomaten", "200 ml Milch", "1 l Milch", "Basilikum",
		"1,5 kg Kartoffeln", "2 Stück Paprika", "Paprika",
	}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(12)
		lines := make([]string, n)
		for i := range lines {
			lines[i] = pool[rng.Intn(len(pool))]
		}

		seen := make(map[int]int)
		for _, ml := range Premerge(lines) {
			require.NotEmpty(t, ml.Text)
			for _, idx := range ml.SourceIndexes {
				seen[idx]++
			}
		}
		for i := 0; i < n; i++ {
			assert.Equal(t, 1, seen[i], fmt.Sprintf("round %d index %d in %v", round, i, lines))
		}
		assert.Len(t, seen, n)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "3", FormatAmount(3))
	assert.Equal(t, "1,5", FormatAmount(1.5))
	assert.Equal(t, "0,33", FormatAmount(1.0/3))
	assert.Equal(t, "1500", FormatAmount(1500))
}
