package shopping

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"text/template"
	"time"

	"go.uber.org/zap"

	"weekplan/internal/ingredient"
	"weekplan/internal/llm"
	"weekplan/internal/shared"
)

//go:embed consolidator_prompt.md
var consolidatorPrompt string

const (
	consolidatorAgent  = "ShopConsolidator"
	consolidatorSystem = "Du bist ein Einkaufslisten-Transformer. " +
		"Du darfst keine neuen Zutaten hinzufügen und nichts weglassen. " +
		"Antworte ausschließlich mit JSON nach dem vorgegebenen Schema."

	// WarningUnavailable is shown whenever the assistant result was not used.
	WarningUnavailable = "AI Sortierung nicht verfügbar."
)

// Outcome classifies what happened to the assistant pass.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeSkipped     Outcome = "skipped"
)

// ErrInvalidResponse marks assistant output that failed validation.
var ErrInvalidResponse = errors.New("invalid assistant response")

var arithmeticRe = regexp.MustCompile(`\d\s*[+=*/]\s*\d`)

var groupSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"groups": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"canonical_name": {Type: llm.TypeString},
					"merged_line":    {Type: llm.TypeString},
					"source_indexes": {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeInteger}},
				},
				Required: []string{"canonical_name", "merged_line", "source_indexes"},
			},
		},
	},
	Required: []string{"groups"},
}

// Group is one assistant grouping of input lines.
type Group struct {
	CanonicalName string `json:"canonical_name"`
	MergedLine    string `json:"merged_line"`
	SourceIndexes []int  `json:"source_indexes"`
}

// groupResponse mirrors groupSchema; pointers tell absent or null fields apart
// from empty ones.
type groupResponse struct {
	Groups *[]struct {
		CanonicalName *string `json:"canonical_name"`
		MergedLine    *string `json:"merged_line"`
		SourceIndexes *[]int  `json:"source_indexes"`
	} `json:"groups"`
}

func (r groupResponse) decoded() ([]Group, error) {
	if r.Groups == nil {
		return nil, fmt.Errorf("%w: missing groups", ErrInvalidResponse)
	}
	groups := make([]Group, 0, len(*r.Groups))
	for i, g := range *r.Groups {
		if g.CanonicalName == nil || g.MergedLine == nil || g.SourceIndexes == nil {
			return nil, fmt.Errorf("%w: group %d lacks a required field", ErrInvalidResponse, i)
		}
		groups = append(groups, Group{
			CanonicalName: *g.CanonicalName,
			MergedLine:    *g.MergedLine,
			SourceIndexes: *g.SourceIndexes,
		})
	}
	return groups, nil
}

// Consolidation is validated output: each line with the input indexes it covers.
type Consolidation struct {
	Lines   []string
	Sources [][]int
}

// AssistantResult is the typed outcome of the assistant pass. Consolidation
// is only set when Outcome is OutcomeAccepted.
type AssistantResult struct {
	Outcome       Outcome
	Consolidation Consolidation
	Reason        string
	Meta          shared.AgentMeta
}

// Consolidator regroups pre-merged lines through an assistant and accepts
// the answer only when it passes validation.
type Consolidator struct {
	gen      llm.JSONGenerator
	maxLines int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewConsolidator creates a new Consolidator. gen may be nil, in which case
// every call is skipped.
func NewConsolidator(gen llm.JSONGenerator, maxLines int, timeout time.Duration, logger *zap.Logger) *Consolidator {
	return &Consolidator{gen: gen, maxLines: maxLines, timeout: timeout, logger: logger}
}

type indexedLine struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Group asks the assistant to regroup lines. It never fails: any problem is
// reported through the Outcome.
func (c *Consolidator) Group(ctx context.Context, lines []string) AssistantResult {
	switch {
	case len(lines) == 0:
		return AssistantResult{Outcome: OutcomeSkipped, Reason: "no lines"}
	case c.gen == nil:
		return AssistantResult{Outcome: OutcomeSkipped, Reason: "no assistant configured"}
	case c.maxLines > 0 && len(lines) > c.maxLines:
		return AssistantResult{Outcome: OutcomeSkipped, Reason: fmt.Sprintf("%d lines exceed the limit of %d", len(lines), c.maxLines)}
	}

	prompt, err := buildConsolidatorPrompt(lines)
	if err != nil {
		return AssistantResult{Outcome: OutcomeUnavailable, Reason: err.Error()}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.gen.GenerateJSON(ctx, llm.JSONRequest{
		Name:   "shop_list_groups",
		System: consolidatorSystem,
		Prompt: prompt,
		Schema: groupSchema,
	})
	meta := shared.AgentMeta{
		AgentName: consolidatorAgent,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
	}
	if err != nil {
		c.logger.Warn("assistant consolidation unavailable", zap.Error(err))
		meta.Outcome = string(OutcomeUnavailable)
		return AssistantResult{Outcome: OutcomeUnavailable, Reason: err.Error(), Meta: meta}
	}

	cons, err := ValidateResponse(resp.Content, lines)
	if err != nil {
		c.logger.Warn("assistant consolidation rejected", zap.Error(err))
		meta.Outcome = string(OutcomeInvalid)
		return AssistantResult{Outcome: OutcomeInvalid, Reason: err.Error(), Meta: meta}
	}

	meta.Outcome = string(OutcomeAccepted)
	return AssistantResult{Outcome: OutcomeAccepted, Consolidation: cons, Meta: meta}
}

func buildConsolidatorPrompt(lines []string) (string, error) {
	indexed := make([]indexedLine, len(lines))
	for i, l := range lines {
		indexed[i] = indexedLine{Index: i, Text: l}
	}
	payload, err := json.MarshalIndent(map[string]any{"locale": "de", "lines": indexed}, "", "  ")
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("consolidator").Parse(consolidatorPrompt)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Payload string }{string(payload)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateResponse decodes raw strictly and checks it against the n input
// lines. A missing or null groups list or group field rejects the whole
// response. Groups with an empty or unresolved merged line are dropped; within
// a group, claimed and out-of-range indexes are dropped, and a group with no
// new index is dropped. Uncovered inputs are appended verbatim, then lines
// are de-duplicated by normalized key.
func ValidateResponse(raw string, lines []string) (Consolidation, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var resp groupResponse
	if err := dec.Decode(&resp); err != nil {
		return Consolidation{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Consolidation{}, fmt.Errorf("%w: trailing data", ErrInvalidResponse)
	}
	groups, err := resp.decoded()
	if err != nil {
		return Consolidation{}, err
	}
	return ValidateGroups(groups, lines)
}

// ValidateGroups applies the conservation rules to decoded groups.
func ValidateGroups(groups []Group, lines []string) (Consolidation, error) {
	n := len(lines)
	claimed := make([]bool, n)
	var cons Consolidation

	for _, g := range groups {
		merged := ingredient.CleanDisplay(g.MergedLine)
		if merged == "" || arithmeticRe.MatchString(merged) {
			continue
		}
		var own []int
		for _, idx := range g.SourceIndexes {
			if idx < 0 || idx >= n || claimed[idx] {
				continue
			}
			claimed[idx] = true
			own = append(own, idx)
		}
		if len(own) == 0 {
			continue
		}
		cons.Lines = append(cons.Lines, merged)
		cons.Sources = append(cons.Sources, own)
	}

	for idx := 0; idx < n; idx++ {
		if !claimed[idx] {
			cons.Lines = append(cons.Lines, ingredient.CleanDisplay(lines[idx]))
			cons.Sources = append(cons.Sources, []int{idx})
		}
	}

	cons = dedupe(cons)
	if len(cons.Lines) == 0 && n > 0 {
		return Consolidation{}, fmt.Errorf("%w: empty result", ErrInvalidResponse)
	}
	return cons, nil
}

// dedupe folds lines with the same normalized key into the first one.
func dedupe(c Consolidation) Consolidation {
	seen := make(map[string]int)
	var out Consolidation
	for i, line := range c.Lines {
		key := ingredient.Normalize(line)
		if pos, ok := seen[key]; ok {
			out.Sources[pos] = append(out.Sources[pos], c.Sources[i]...)
			continue
		}
		seen[key] = len(out.Lines)
		out.Lines = append(out.Lines, line)
		out.Sources = append(out.Sources, append([]int(nil), c.Sources[i]...))
	}
	return out
}
