package recipe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var addPrefixRe = regexp.MustCompile(`(?i)^add\s+`)

// AddUsage is shown when a chat "add" command cannot be parsed.
const AddUsage = "Beispiel:\nadd Spaghetti Carbonara | tags=pasta,italien | time=15 | diff=1"

// ParseAdd parses a chat command of the form
//
//	add Title | tags=a,b | ings=x, y | time=25 | diff=2 | notes=... | https://...
//
// Each "|" chunk is a key=value pair, a URL or part of the title.
func ParseAdd(text string) (Input, error) {
	raw := addPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")

	kv := make(map[string]string)
	var titleParts []string
	var url string
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			kv[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
			continue
		}
		if strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://") {
			url = part
			continue
		}
		titleParts = append(titleParts, part)
	}

	in := Input{Title: strings.TrimSpace(strings.Join(titleParts, " "))}
	if in.Title == "" {
		return Input{}, fmt.Errorf("%w: title missing (e.g. add Shakshuka | time=25 | diff=2)", ErrInvalid)
	}
	if url != "" {
		in.SourceURL = &url
	}
	if v, ok := kv["tags"]; ok {
		in.Tags = CleanList(strings.Split(v, ","))
	}
	if v, ok := firstOf(kv, "ings", "ingredients"); ok {
		in.Ingredients = CleanList(strings.Split(v, ","))
	}
	if v, ok := kv["time"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Input{}, fmt.Errorf("%w: time must be a number of minutes", ErrInvalid)
		}
		in.TimeMinutes = &n
	}
	if v, ok := firstOf(kv, "diff", "difficulty"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Input{}, fmt.Errorf("%w: diff must be 1..3", ErrInvalid)
		}
		in.Difficulty = &n
	}
	if v, ok := kv["notes"]; ok {
		in.Notes = v
	}
	return in, nil
}

func firstOf(kv map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := kv[k]; ok {
			return v, true
		}
	}
	return "", false
}
