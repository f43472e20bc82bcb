package recipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	maxRedirects = 5
	maxBodyBytes = 3 << 20
	userAgent    = "WeekplanRecipeImporter/1.0"
)

// ErrInvalidURL wraps every rejection of an import URL or its response.
// The wrapped message is user facing.
var ErrInvalidURL = errors.New("invalid import url")

// Preview is an imported recipe that has not been saved yet.
type Preview struct {
	Title       string   `json:"title"`
	SourceURL   string   `json:"source_url"`
	Notes       string   `json:"notes"`
	Tags        []string `json:"tags"`
	Ingredients []string `json:"ingredients"`
	TimeMinutes *int     `json:"time_minutes"`
	IsActive    bool     `json:"is_active"`
}

// CachedPreview is what the preview cache stores per canonical URL.
type CachedPreview struct {
	Draft    Preview  `json:"draft"`
	Warnings []string `json:"warnings"`
}

// PreviewResult is the outcome of an import preview. On failure OK is false
// and Error holds a user-facing message.
type PreviewResult struct {
	OK               bool     `json:"ok"`
	Draft            *Preview `json:"draft,omitempty"`
	Warnings         []string `json:"warnings"`
	Error            string   `json:"error,omitempty"`
	ExistingRecipeID string   `json:"existing_recipe_id,omitempty"`
}

// SourceLookup finds already imported recipes.
type SourceLookup interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (string, error)
}

// PreviewCache stores previews for a limited time.
type PreviewCache interface {
	Get(ctx context.Context, key string) (*CachedPreview, error)
	Set(ctx context.Context, key string, value CachedPreview) error
}

// Importer turns recipe web pages into previews.
type Importer struct {
	client       *http.Client
	lookup       SourceLookup
	cache        PreviewCache
	logger       *zap.Logger
	resolveHost  func(ctx context.Context, host string) ([]net.IPAddr, error)
	allowPrivate bool
}

// NewImporter creates a new Importer instance. cache may be nil.
func NewImporter(lookup SourceLookup, cache PreviewCache, timeout time.Duration, logger *zap.Logger) *Importer {
	im := &Importer{
		lookup:      lookup,
		cache:       cache,
		logger:      logger,
		resolveHost: net.DefaultResolver.LookupIPAddr,
	}
	im.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("%w: Zu viele Weiterleitungen.", ErrInvalidURL)
			}
			_, err := im.ValidateURL(req.Context(), req.URL.String())
			return err
		},
	}
	return im
}

// Preview fetches rawURL and extracts a recipe draft from it.
func (im *Importer) Preview(ctx context.Context, rawURL string) PreviewResult {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return failed("Bitte eine URL angeben.")
	}

	validated, err := im.ValidateURL(ctx, rawURL)
	if err != nil {
		return failedErr(err)
	}

	canonical, body, err := im.fetch(ctx, validated)
	if err != nil {
		im.logger.Info("recipe import fetch failed", zap.String("url", validated), zap.Error(err))
		return failedErr(err)
	}

	existing, err := im.lookup.FindBySourceURL(ctx, canonical)
	if err != nil {
		return failedErr(err)
	}
	if existing != "" {
		res := failed((&DuplicateError{}).Error())
		res.ExistingRecipeID = existing
		return res
	}

	key := PreviewCacheKey(canonical)
	if im.cache != nil {
		cached, err := im.cache.Get(ctx, key)
		if err != nil {
			im.logger.Warn("recipe preview cache read failed", zap.Error(err))
		} else if cached != nil {
			return PreviewResult{OK: true, Draft: &cached.Draft, Warnings: nonNil(cached.Warnings)}
		}
	}

	draft, warnings, err := Extract(body)
	if err != nil {
		return failedErr(err)
	}
	draft.SourceURL = canonical
	draft.IsActive = true

	tags, warning := LimitTags(draft.Tags)
	draft.Tags = tags
	if warning != "" {
		warnings = append(warnings, warning)
	}
	if len(draft.Ingredients) == 0 {
		return failed("Keine Zutaten gefunden.")
	}

	if im.cache != nil {
		if err := im.cache.Set(ctx, key, CachedPreview{Draft: *draft, Warnings: warnings}); err != nil {
			im.logger.Warn("recipe preview cache write failed", zap.Error(err))
		}
	}
	return PreviewResult{OK: true, Draft: draft, Warnings: warnings}
}

// ValidateURL accepts absolute http(s) URLs without user info whose host
// does not resolve to a local or private address.
func (im *Importer) ValidateURL(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || raw == "" {
		return "", fmt.Errorf("%w: Ungültige URL.", ErrInvalidURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: Nur http/https URLs sind erlaubt.", ErrInvalidURL)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: URL mit Benutzerinfo ist nicht erlaubt.", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: Ungültiger Host in URL.", ErrInvalidURL)
	}
	if im.allowPrivate {
		return u.String(), nil
	}
	if strings.EqualFold(host, "localhost") {
		return "", fmt.Errorf("%w: Lokale URLs sind nicht erlaubt.", ErrInvalidURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return "", fmt.Errorf("%w: Private oder lokale IPs sind nicht erlaubt.", ErrInvalidURL)
		}
		return u.String(), nil
	}
	addrs, err := im.resolveHost(ctx, host)
	if err != nil {
		return "", fmt.Errorf("%w: Host konnte nicht aufgelöst werden.", ErrInvalidURL)
	}
	for _, a := range addrs {
		if isBlockedIP(a.IP) {
			return "", fmt.Errorf("%w: Private oder lokale IPs sind nicht erlaubt.", ErrInvalidURL)
		}
	}
	return u.String(), nil
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() ||
		ip.IsInterfaceLocalMulticast()
}

func (im *Importer) fetch(ctx context.Context, target string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: Ungültige URL.", ErrInvalidURL)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := im.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrInvalidURL) {
			var uerr *url.Error
			if errors.As(err, &uerr) {
				return "", nil, uerr.Err
			}
			return "", nil, err
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return "", nil, fmt.Errorf("%w: Abruf hat zu lange gedauert.", ErrInvalidURL)
		}
		return "", nil, fmt.Errorf("%w: Abruf fehlgeschlagen.", ErrInvalidURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%w: Abruf fehlgeschlagen.", ErrInvalidURL)
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return "", nil, fmt.Errorf("%w: Inhaltstyp wird nicht unterstützt.", ErrInvalidURL)
	}
	if resp.ContentLength > maxBodyBytes {
		return "", nil, fmt.Errorf("%w: Inhalt zu groß.", ErrInvalidURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("%w: Abruf fehlgeschlagen.", ErrInvalidURL)
	}
	if len(body) > maxBodyBytes {
		return "", nil, fmt.Errorf("%w: Inhalt zu groß.", ErrInvalidURL)
	}
	return resp.Request.URL.String(), body, nil
}

// Extract reads a recipe from an HTML page. JSON-LD Recipe data is preferred;
// without it the page title and microdata ingredients are used and a warning is returned.
func Extract(html []byte) (*Preview, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: Seite konnte nicht gelesen werden.", ErrInvalidURL)
	}

	warnings := []string{}
	var ld map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		ld = findRecipeJSONLD(data)
		return ld == nil
	})

	p := &Preview{Tags: []string{}, Ingredients: []string{}}
	if ld != nil {
		p.Title = firstString(ld, "name", "headline")
		p.Notes = collapse(firstString(ld, "description"))
		p.Ingredients = ldIngredients(ld)
		p.Tags = ldTags(ld)
		for _, k := range []string{"totalTime", "cookTime", "prepTime"} {
			if v, ok := ld[k]; ok && v != nil {
				p.TimeMinutes = ParseDurationMinutes(v)
				break
			}
		}
	} else {
		warnings = append(warnings, "Keine strukturierten Rezeptdaten gefunden; Text wurde extrahiert.")
		doc.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"]`).Each(func(_ int, s *goquery.Selection) {
			if t := collapse(s.Text()); t != "" {
				p.Ingredients = append(p.Ingredients, t)
			}
		})
		p.Ingredients = CleanList(p.Ingredients)
	}

	if p.Title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			p.Title = collapse(og)
		}
	}
	if p.Title == "" {
		p.Title = collapse(doc.Find("title").First().Text())
	}
	p.Title = collapse(p.Title)

	if p.Title == "" && len(p.Ingredients) == 0 {
		return nil, nil, fmt.Errorf("%w: Seite konnte nicht gelesen werden.", ErrInvalidURL)
	}
	return p, warnings, nil
}

func findRecipeJSONLD(data any) map[string]any {
	switch v := data.(type) {
	case map[string]any:
		if isRecipeType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				if found := findRecipeJSONLD(item); found != nil {
					return found
				}
			}
		}
	case []any:
		for _, item := range v {
			if found := findRecipeJSONLD(item); found != nil {
				return found
			}
		}
	}
	return nil
}

func isRecipeType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), "recipe")
	case []any:
		for _, item := range v {
			if isRecipeType(item) {
				return true
			}
		}
	}
	return false
}

func ldIngredients(ld map[string]any) []string {
	raw, ok := ld["recipeIngredient"]
	if !ok || raw == nil {
		raw = ld["ingredients"]
	}
	var out []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, collapse(s))
			}
		}
	case string:
		out = strings.Split(v, "\n")
	}
	return CleanList(out)
}

func ldTags(ld map[string]any) []string {
	var tags []string
	for _, key := range []string{"recipeCategory", "recipeCuisine", "keywords"} {
		switch v := ld[key].(type) {
		case string:
			tags = append(tags, strings.Split(v, ",")...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					tags = append(tags, s)
				}
			}
		}
	}
	return CleanList(tags)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

var (
	wsRe          = regexp.MustCompile(`\s+`)
	durHoursRe    = regexp.MustCompile(`(\d+)\s*H`)
	durMinutesRe  = regexp.MustCompile(`(\d+)\s*M`)
	durMinWordRe  = regexp.MustCompile(`(\d+)\s*(MIN|MINS|MINUTE|MINUTEN)`)
	firstNumberRe = regexp.MustCompile(`\d+`)
)

func collapse(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// ParseDurationMinutes converts an ISO-8601 duration ("PT1H30M"), a text
// such as "25 Minuten" or a plain number into minutes.
func ParseDurationMinutes(v any) *int {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return nil
		}
		n := int(t)
		return &n
	case string:
		s := strings.ToUpper(strings.TrimSpace(t))
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "PT") || strings.HasPrefix(s, "P0DT") {
			total := 0
			if m := durHoursRe.FindStringSubmatch(s); m != nil {
				h, _ := strconv.Atoi(m[1])
				total += h * 60
			}
			if m := durMinutesRe.FindStringSubmatch(s[strings.Index(s, "T"):]); m != nil {
				mins, _ := strconv.Atoi(m[1])
				total += mins
			}
			return &total
		}
		if m := durMinWordRe.FindStringSubmatch(s); m != nil {
			n, _ := strconv.Atoi(m[1])
			return &n
		}
		if m := firstNumberRe.FindString(s); m != "" {
			n, _ := strconv.Atoi(m)
			return &n
		}
	}
	return nil
}

// PreviewCacheKey hashes a canonical URL into a cache key.
func PreviewCacheKey(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

func failed(msg string) PreviewResult {
	return PreviewResult{OK: false, Error: msg, Warnings: []string{}}
}

func failedErr(err error) PreviewResult {
	msg := err.Error()
	if errors.Is(err, ErrInvalidURL) {
		msg = strings.TrimPrefix(msg, ErrInvalidURL.Error()+": ")
	}
	return failed(msg)
}
