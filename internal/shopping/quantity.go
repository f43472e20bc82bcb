package shopping

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"weekplan/internal/ingredient"
)

type dimension int

const (
	dimNone dimension = iota
	dimMass
	dimVolume
)

type unitInfo struct {
	display string
	dim     dimension
	factor  float64
}

var units = map[string]unitInfo{
	"g":      {"g", dimMass, 1},
	"gr":     {"g", dimMass, 1},
	"gramm":  {"g", dimMass, 1},
	"kg":     {"kg", dimMass, 1000},
	"ml":     {"ml", dimVolume, 1},
	"cl":     {"cl", dimVolume, 10},
	"l":      {"l", dimVolume, 1000},
	"liter":  {"l", dimVolume, 1000},
	"el":     {"EL", dimNone, 1},
	"tl":     {"TL", dimNone, 1},
	"stück":  {"Stück", dimNone, 1},
	"stueck": {"Stück", dimNone, 1},
	"stk":    {"Stück", dimNone, 1},
}

var baseUnit = map[dimension]string{dimMass: "g", dimVolume: "ml"}

var numberWords = map[string]float64{
	"ein": 1, "eine": 1, "einen": 1, "einer": 1,
	"zwei": 2, "drei": 3, "vier": 4, "fünf": 5,
	"sechs": 6, "sieben": 7, "acht": 8, "neun": 9, "zehn": 10,
}

var vulgarFractions = map[string]float64{"½": 0.5, "¼": 0.25, "¾": 0.75, "⅓": 1.0 / 3, "⅔": 2.0 / 3}

var stopWords = map[string]bool{
	"frisch": true, "frische": true, "frischer": true, "frisches": true,
	"klein": true, "kleine": true, "kleiner": true, "kleines": true,
	"groß": true, "große": true, "großer": true, "großes": true,
	"mittelgroß": true, "mittelgroße": true,
	"gehackt": true, "gehackte": true, "fein": true, "feine": true, "grob": true,
	"etwas": true, "ca": true, "circa": true, "optional": true, "nach": true, "belieben": true,
	"bio": true, "reif": true, "reife": true,
}

var (
	amountRe     = regexp.MustCompile(`^(\d+(?:[.,]\d+)?|\d+/\d+|[½¼¾⅓⅔])([a-zA-ZäöüÄÖÜß]*)\.?$`)
	rangeRe      = regexp.MustCompile(`^\d+(?:[.,]\d+)?\s*[-–]\s*\d+(?:[.,]\d+)?`)
	connectiveRe = regexp.MustCompile(`(?i)\s+(?:und|and|&|\+)\s+`)
	quantityRe   = regexp.MustCompile(`^(?:\d|[½¼¾⅓⅔])`)
)

// Quantity is the parsed form of an ingredient line.
type Quantity struct {
	Raw       string
	Amount    float64
	HasAmount bool
	Unit      string
	Name      string
}

// MergedLine is a stage-A output line and the buy-line indexes it covers.
type MergedLine struct {
	Text          string
	Name          string
	Amount        float64
	HasAmount     bool
	Unit          string
	SourceIndexes []int
	category      int
}

// ParseQuantity reads an optional leading amount and unit from line.
// A range such as "2-3" yields no amount.
func ParseQuantity(line string) Quantity {
	line = ingredient.CleanDisplay(line)
	q := Quantity{Raw: line, Name: line}
	if rangeRe.MatchString(line) {
		q.Name = strings.TrimSpace(rangeRe.ReplaceAllString(line, ""))
		q.Name = stripUnit(q.Name)
		return q
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return q
	}

	amount, unit, ok := parseAmountToken(tokens[0])
	if !ok {
		return q
	}
	rest := tokens[1:]

	if unit == "" && len(rest) > 0 {
		if frac, funit, fok := parseAmountToken(rest[0]); fok && isFraction(rest[0]) {
			amount += frac
			unit = funit
			rest = rest[1:]
		}
	}
	if unit == "" && len(rest) > 0 {
		if u, ok := lookupUnit(rest[0]); ok {
			unit = u
			rest = rest[1:]
		}
	}
	if len(rest) == 0 {
		return q
	}

	q.Amount = amount
	q.HasAmount = true
	q.Unit = unit
	q.Name = strings.Join(rest, " ")
	return q
}

// isFraction reports whether tok may follow a whole number, as in "1 1/2" or "1 ½".
func isFraction(tok string) bool {
	return strings.Contains(tok, "/") || strings.ContainsAny(tok, "½¼¾⅓⅔")
}

func parseAmountToken(tok string) (float64, string, bool) {
	if v, ok := numberWords[strings.ToLower(tok)]; ok {
		return v, "", true
	}
	m := amountRe.FindStringSubmatch(tok)
	if m == nil {
		return 0, "", false
	}

	var v float64
	switch {
	case vulgarFractions[m[1]] > 0:
		v = vulgarFractions[m[1]]
	case strings.Contains(m[1], "/"):
		parts := strings.SplitN(m[1], "/", 2)
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den == 0 {
			return 0, "", false
		}
		v = num / den
	default:
		f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return 0, "", false
		}
		v = f
	}

	if m[2] == "" {
		return v, "", true
	}
	u, ok := lookupUnit(m[2])
	if !ok {
		return 0, "", false
	}
	return v, u, true
}

func lookupUnit(tok string) (string, bool) {
	info, ok := units[strings.TrimSuffix(strings.ToLower(tok), ".")]
	if !ok {
		return "", false
	}
	return info.display, true
}

func stripUnit(name string) string {
	tokens := strings.Fields(name)
	if len(tokens) > 1 {
		if _, ok := lookupUnit(tokens[0]); ok {
			return strings.Join(tokens[1:], " ")
		}
	}
	return name
}

func unitByDisplay(display string) unitInfo {
	for _, info := range units {
		if info.display == display {
			return info
		}
	}
	return unitInfo{display: display}
}

// splitCompound breaks a line into separate ingredients: on ";", on ","
// unless it sits between digits, and on connectives when at least two
// amounts are present.
func splitCompound(line string) []string {
	var parts []string
	for _, seg := range strings.Split(line, ";") {
		parts = append(parts, splitComma(seg)...)
	}

	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if countQuantities(p) >= 2 {
			for _, sub := range connectiveRe.Split(p, -1) {
				if sub = strings.TrimSpace(sub); sub != "" {
					out = append(out, sub)
				}
			}
			continue
		}
		out = append(out, p)
	}
	return out
}

func splitComma(s string) []string {
	r := []rune(s)
	var out []string
	start := 0
	for i, c := range r {
		if c != ',' {
			continue
		}
		if i > 0 && i+1 < len(r) && unicode.IsDigit(r[i-1]) && unicode.IsDigit(r[i+1]) {
			continue
		}
		out = append(out, string(r[start:i]))
		start = i + 1
	}
	return append(out, string(r[start:]))
}

func countQuantities(s string) int {
	n := 0
	for _, tok := range strings.Fields(s) {
		if quantityRe.MatchString(tok) {
			n++
			continue
		}
		if _, ok := numberWords[strings.ToLower(tok)]; ok {
			n++
		}
	}
	return n
}

// mergeKey reduces an ingredient name to the key lines are merged on.
func mergeKey(name string) string {
	norm := ingredient.Normalize(name)
	var kept []string
	for _, tok := range strings.Fields(norm) {
		if stopWords[tok] {
			continue
		}
		kept = append(kept, foldPlural(tok))
	}
	if len(kept) == 0 {
		return norm
	}
	return strings.Join(kept, " ")
}

// foldPlural strips plural and inflection suffixes until none applies.
func foldPlural(tok string) string {
	for {
		n := len([]rune(tok))
		switch {
		case n > 4 && strings.HasSuffix(tok, "en"):
			tok = strings.TrimSuffix(tok, "en")
		case n > 4 && (strings.HasSuffix(tok, "eln") || strings.HasSuffix(tok, "ern")):
			tok = strings.TrimSuffix(tok, "n")
		case n > 3 && strings.HasSuffix(tok, "e"):
			tok = strings.TrimSuffix(tok, "e")
		default:
			return tok
		}
	}
}

// Premerge runs the deterministic consolidation: compound lines are split,
// lines with the same merge key are combined and amounts are summed when
// every line carries a compatible one. Every input index ends up in
// exactly one output line.
func Premerge(lines []string) []MergedLine {
	type group struct {
		quantities []Quantity
		sources    []int
	}
	var order []string
	groups := make(map[string]*group)

	for idx, line := range lines {
		for _, piece := range splitCompound(line) {
			q := ParseQuantity(piece)
			key := mergeKey(q.Name)
			if key == "" {
				key = ingredient.Normalize(q.Raw)
			}
			g, ok := groups[key]
			if !ok {
				g = &group{}
				groups[key] = g
				order = append(order, key)
			}
			g.quantities = append(g.quantities, q)
			g.sources = appendUnique(g.sources, idx)
		}
	}

	out := make([]MergedLine, 0, len(order))
	for _, key := range order {
		g := groups[key]
		ml := combine(g.quantities)
		ml.SourceIndexes = g.sources
		ml.category = categoryOf(key)
		out = append(out, ml)
	}

	// A compound line split into several groups still needs an owner per index.
	out = assignSources(out, len(lines))

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].category != out[j].category {
			return out[i].category < out[j].category
		}
		return strings.ToLower(out[i].Text) < strings.ToLower(out[j].Text)
	})
	return out
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// assignSources keeps each input index on the first line that claims it.
func assignSources(lines []MergedLine, n int) []MergedLine {
	claimed := make([]bool, n)
	for i := range lines {
		var own []int
		for _, idx := range lines[i].SourceIndexes {
			if !claimed[idx] {
				claimed[idx] = true
				own = append(own, idx)
			}
		}
		lines[i].SourceIndexes = own
	}
	return lines
}

func combine(qs []Quantity) MergedLine {
	first := qs[0]
	if len(qs) == 1 {
		return MergedLine{
			Text:      first.Raw,
			Name:      first.Name,
			Amount:    first.Amount,
			HasAmount: first.HasAmount,
			Unit:      first.Unit,
		}
	}

	ml := MergedLine{Name: first.Name, Text: first.Name}
	for _, q := range qs {
		if !q.HasAmount {
			return ml
		}
	}

	sameUnit := true
	for _, q := range qs[1:] {
		if q.Unit != first.Unit {
			sameUnit = false
			break
		}
	}
	if sameUnit {
		var sum float64
		for _, q := range qs {
			sum += q.Amount
		}
		return withAmount(ml, sum, first.Unit)
	}

	dim := unitByDisplay(first.Unit).dim
	if dim == dimNone {
		return ml
	}
	var sum float64
	for _, q := range qs {
		info := unitByDisplay(q.Unit)
		if info.dim != dim {
			return ml
		}
		sum += q.Amount * info.factor
	}
	return withAmount(ml, sum, baseUnit[dim])
}

func withAmount(ml MergedLine, amount float64, unit string) MergedLine {
	ml.Amount = amount
	ml.HasAmount = true
	ml.Unit = unit
	if unit == "" {
		ml.Text = FormatAmount(amount) + " " + ml.Name
	} else {
		ml.Text = FormatAmount(amount) + " " + unit + " " + ml.Name
	}
	return ml
}

// FormatAmount prints v with at most two decimals, a decimal comma and no
// trailing zeros.
func FormatAmount(v float64) string {
	v = math.Round(v*100) / 100
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', -1, 64), ".", ",")
}

const (
	catProtein = iota
	catProduce
	catStarch
	catDairy
	catOther
)

// Keywords are matched against merge keys, so they are given in folded form.
var categoryKeywords = []struct {
	category int
	exact    []string
	contains []string
}{
	{catProtein, []string{"ei", "eier"}, []string{
		"hähnch", "hühnch", "huhn", "put", "rind", "hack", "schwein", "speck", "schink",
		"wurst", "fleisch", "lachs", "fisch", "garnel", "tofu", "tempeh",
		"lins", "kichererbs", "bohn",
	}},
	{catProduce, nil, []string{
		"tomat", "zwiebel", "karott", "möhr", "paprika", "zucchini", "salat", "spinat", "gurk",
		"lauch", "porr", "brokkoli", "kohl", "pilz", "champignon", "aubergin",
		"selleri", "apfel", "zitron", "limett", "ingwer", "knoblauch", "petersili", "basilikum",
		"koriander", "avocado", "kürbis", "mais", "erbs",
	}},
	{catStarch, nil, []string{
		"nudel", "pasta", "spaghetti", "penn", "lasagn", "reis", "kartoffel", "brot", "brötch",
		"mehl", "couscous", "bulgur", "quinoa", "gnocchi", "tortilla", "wrap", "haferflock",
	}},
	{catDairy, nil, []string{
		"milch", "sahn", "butter", "käs", "joghurt", "quark", "schmand", "mozzarella",
		"parmesan", "feta", "crèm", "crem", "ricotta", "mascarpon",
	}},
}

func categoryOf(key string) int {
	tokens := strings.Fields(key)
	for _, c := range categoryKeywords {
		for _, tok := range tokens {
			for _, e := range c.exact {
				if tok == e {
					return c.category
				}
			}
			for _, kw := range c.contains {
				if strings.Contains(tok, kw) {
					return c.category
				}
			}
		}
	}
	return catOther
}
