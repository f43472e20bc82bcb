package recipe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---
type mockLookup struct {
	existing map[string]string
}

func (m *mockLookup) FindBySourceURL(_ context.Context, u string) (string, error) {
	return m.existing[u], nil
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]CachedPreview
}

func (c *memoryCache) Get(_ context.Context, key string) (*CachedPreview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value CachedPreview) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

const jsonLDPage = `<html><head><title>Ignored</title>
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
 {"@type":"WebSite","name":"Kochseite"},
 {"@type":["Recipe"],"name":" Ofengemüse ","description":"Bunt  und einfach.",
  "recipeIngredient":["500 g Kartoffeln","2  Paprika",""],
  "totalTime":"PT1H15M","keywords":"vegetarisch, ofen, schnell, einfach"}
]}</script></head><body></body></html>`

const plainPage = `<html><head><title>Omas Suppe</title></head><body>
<ul><li itemprop="recipeIngredient">1 l Brühe</li><li itemprop="recipeIngredient">2 Karotten</li></ul>
</body></html>`

func newTestImporter(lookup SourceLookup, cache PreviewCache) *Importer {
	im := NewImporter(lookup, cache, 0, zap.NewNop())
	im.allowPrivate = true
	return im
}

func TestImporterPreview(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/recipe", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(jsonLDPage))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(plainPage))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/recipe", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.Repeat("a", maxBodyBytes+10)))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx := context.Background()

	t.Run("JSONLD", func(t *testing.T) {
		cache := &memoryCache{items: map[string]CachedPreview{}}
		im := newTestImporter(&mockLookup{}, cache)

		res := im.Preview(ctx, ts.URL+"/recipe")
		require.True(t, res.OK, res.Error)
		assert.Equal(t, "Ofengemüse", res.Draft.Title)
		assert.Equal(t, "Bunt und einfach.", res.Draft.Notes)
		assert.Equal(t, []string{"500 g Kartoffeln", "2 Paprika"}, res.Draft.Ingredients)
		assert.Equal(t, 75, *res.Draft.TimeMinutes)
		assert.Equal(t, []string{"vegetarisch", "ofen", "schnell"}, res.Draft.Tags)
		assert.Contains(t, res.Warnings, "Maximal 3 Tags erlaubt; weitere Tags wurden entfernt.")
		assert.Equal(t, ts.URL+"/recipe", res.Draft.SourceURL)

		require.Len(t, cache.items, 1)
		for key, cached := range cache.items {
			cached.Draft.Title = "Aus dem Cache"
			cache.items[key] = cached
		}
		again := im.Preview(ctx, ts.URL+"/recipe")
		require.True(t, again.OK)
		assert.Equal(t, "Aus dem Cache", again.Draft.Title)
	})

	t.Run("RedirectUsesCanonicalURL", func(t *testing.T) {
		im := newTestImporter(&mockLookup{}, nil)
		res := im.Preview(ctx, ts.URL+"/moved")
		require.True(t, res.OK, res.Error)
		assert.Equal(t, ts.URL+"/recipe", res.Draft.SourceURL)
	})

	t.Run("TooManyRedirects", func(t *testing.T) {
		im := newTestImporter(&mockLookup{}, nil)
		res := im.Preview(ctx, ts.URL+"/loop")
		assert.False(t, res.OK)
		assert.Equal(t, "Zu viele Weiterleitungen.", res.Error)
	})

	t.Run("Duplicate", func(t *testing.T) {
		im := newTestImporter(&mockLookup{existing: map[string]string{ts.URL + "/recipe": "r-1"}}, nil)
		res := im.Preview(ctx, ts.URL+"/moved")
		assert.False(t, res.OK)
		assert.Equal(t, "r-1", res.ExistingRecipeID)
	})

	t.Run("FallbackWithoutJSONLD", func(t *testing.T) {
		im := newTestImporter(&mockLookup{}, nil)
		res := im.Preview(ctx, ts.URL+"/plain")
		require.True(t, res.OK, res.Error)
		assert.Equal(t, "Omas Suppe", res.Draft.Title)
		assert.Equal(t, []string{"1 l Brühe", "2 Karotten"}, res.Draft.Ingredients)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("WrongContentType", func(t *testing.T) {
		im := newTestImporter(&mockLookup{}, nil)
		res := im.Preview(ctx, ts.URL+"/json")
		assert.False(t, res.OK)
		assert.Equal(t, "Inhaltstyp wird nicht unterstützt.", res.Error)
	})

	t.Run("TooLarge", func(t *testing.T) {
		im := newTestImporter(&mockLookup{}, nil)
		res := im.Preview(ctx, ts.URL+"/big")
		assert.False(t, res.OK)
		assert.Equal(t, "Inhalt zu groß.", res.Error)
	})

	t.Run("EmptyURL", func(t *testing.T) {
		im := newTestImporter(&mockLookup{}, nil)
		res := im.Preview(ctx, "  ")
		assert.False(t, res.OK)
		assert.Equal(t, "Bitte eine URL angeben.", res.Error)
	})
}

func TestValidateURL(t *testing.T) {
	im := NewImporter(&mockLookup{}, nil, 0, zap.NewNop())
	im.resolveHost = func(_ context.Context, host string) ([]net.IPAddr, error) {
		if host == "intranet.example" {
			return []net.IPAddr{{IP: net.ParseIP("10.0.0.5")}}, nil
		}
		return []net.IPAddr{{IP: net.ParseIP("93.184.216.34")}}, nil
	}
	ctx := context.Background()

	tests := []struct {
		raw     string
		wantErr string
	}{
		{raw: "https://example.com/rezept"},
		{raw: "ftp://example.com", wantErr: "Nur http/https URLs sind erlaubt."},
		{raw: "https://user:pw@example.com", wantErr: "URL mit Benutzerinfo ist nicht erlaubt."},
		{raw: "http://localhost:8080", wantErr: "Lokale URLs sind nicht erlaubt."},
		{raw: "http://127.0.0.1/", wantErr: "Private oder lokale IPs sind nicht erlaubt."},
		{raw: "http://192.168.1.1/", wantErr: "Private oder lokale IPs sind nicht erlaubt."},
		{raw: "http://intranet.example/", wantErr: "Private oder lokale IPs sind nicht erlaubt."},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := im.ValidateURL(ctx, tt.raw)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidURL)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseDurationMinutes(t *testing.T) {
	tests := []struct {
		in   any
		want *int
	}{
		{"PT30M", intPtr(30)},
		{"PT1H", intPtr(60)},
		{"PT1H30M", intPtr(90)},
		{"P0DT2H5M", intPtr(125)},
		{"25 Minuten", intPtr(25)},
		{"ca. 40", intPtr(40)},
		{float64(12), intPtr(12)},
		{"", nil},
		{nil, nil},
		{"schnell", nil},
	}
	for _, tt := range tests {
		got := ParseDurationMinutes(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "%v", tt.in)
			continue
		}
		require.NotNil(t, got, "%v", tt.in)
		assert.Equal(t, *tt.want, *got, "%v", tt.in)
	}
}
