package market

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct{ name string }

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Quote(context.Context, Symbol) (*Quote, error) {
	return &Quote{Price: 1}, nil
}
func (f *fakeProvider) Index(context.Context, string) (*IndexQuote, error) {
	return &IndexQuote{Price: 1}, nil
}

type quoteOnly struct{}

func (quoteOnly) Name() string                                  { return "quote-only" }
func (quoteOnly) Quote(context.Context, Symbol) (*Quote, error) { return nil, nil }

func init() {
	RegisterProvider("fake", func(name string, cfg *ProviderConfig) (Provider, error) {
		return &fakeProvider{name: name}, nil
	})
	RegisterProvider("quoteonly", func(string, *ProviderConfig) (Provider, error) {
		return quoteOnly{}, nil
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("FAKE_URL", "https://quotes.example.com")
	dir := t.TempDir()
	path := filepath.Join(dir, "market.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
quote: primary
index: primary
providers:
  primary:
    type: FAKE
    base_url: ${FAKE_URL}
    timeout: 3s
    rate_limit: 30
symbols:
  宁王: sz300750
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	p := cfg.Providers["primary"]
	require.Equal(t, "https://quotes.example.com", p.BaseURL)
	require.Equal(t, 3*time.Second, p.Timeout)
	require.Equal(t, 30, p.RateLimit)

	src, err := cfg.Build()
	require.NoError(t, err)
	require.NotNil(t, src.Quotes)
	require.NotNil(t, src.Indexes)
	require.Nil(t, src.Fundamentals)

	sym, err := src.Symbols.Resolve("宁王", "")
	require.NoError(t, err)
	require.Equal(t, "sz300750", sym.Code)
}

func TestConfigDefaultsTimeout(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(`
quote: p
index: p
providers:
  p: {type: fake}
`))
	require.NoError(t, err)
	require.Equal(t, defaultProviderTimeout, cfg.Providers["p"].Timeout)
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]string{
		"no providers":       "quote: a\nindex: a",
		"unknown type":       "quote: a\nindex: a\nproviders:\n  a: {type: nope}",
		"missing type":       "quote: a\nindex: a\nproviders:\n  a: {base_url: x}",
		"undefined quote":    "quote: b\nindex: a\nproviders:\n  a: {type: fake}",
		"missing index role": "quote: a\nproviders:\n  a: {type: fake}",
		"undefined fund":     "quote: a\nindex: a\nfundamentals: z\nproviders:\n  a: {type: fake}",
		"bad timeout":        "quote: a\nindex: a\nproviders:\n  a: {type: fake, timeout: fast}",
		"negative limit":     "quote: a\nindex: a\nproviders:\n  a: {type: fake, rate_limit: -1}",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(data))
			require.Error(t, err)
		})
	}
}

func TestBuildRejectsProviderWithoutRole(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(`
quote: q
index: q
providers:
  q: {type: quoteonly}
`))
	require.NoError(t, err)
	_, err = cfg.Build()
	require.ErrorContains(t, err, "cannot serve indexes")
}

type flakyQuotes struct {
	err   error
	calls int
}

func (f *flakyQuotes) Quote(context.Context, Symbol) (*Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Quote{Price: 2}, nil
}

func TestFallbackQuotes(t *testing.T) {
	ctx := context.Background()
	primary := &flakyQuotes{err: ErrSymbolNotFound}
	secondary := &flakyQuotes{}
	q, err := FallbackQuotes(primary, secondary).Quote(ctx, MustParseCode("usAAPL"))
	require.NoError(t, err)
	require.Equal(t, 2.0, q.Price)
	require.Equal(t, 1, primary.calls)

	secondary.err = ErrUnsupported
	_, err = FallbackQuotes(primary, secondary).Quote(ctx, MustParseCode("usAAPL"))
	require.ErrorIs(t, err, ErrSymbolNotFound)

	_, err = FallbackQuotes(secondary).Quote(ctx, MustParseCode("usAAPL"))
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestBuildWithQuoteFallback(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(`
quote: primary
quote_fallback: backup
index: primary
providers:
  primary: {type: fake}
  backup: {type: quoteonly}
`))
	require.NoError(t, err)
	src, err := cfg.Build()
	require.NoError(t, err)
	_, wrapped := src.Quotes.(fallbackQuotes)
	require.True(t, wrapped)

	_, err = LoadConfigFromReader(strings.NewReader(`
quote: primary
quote_fallback: missing
index: primary
providers:
  primary: {type: fake}
`))
	require.Error(t, err)
}
