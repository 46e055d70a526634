package extract

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpulse/internal/detect"
)

var longParagraph = strings.Repeat("Roof repair costs vary with the material and the pitch of the roof. ", 5)

func page(body string) string {
	return `<html><head>
<title>Fallback Title</title>
<meta property="og:title" content="OG Title">
<meta name="author" content="Jane Roofer">
<meta property="article:published_time" content="2024-03-01T10:00:00Z">
<script>var x = "ignored";</script>
</head><body>
<header><h1>Site Name</h1></header>
<nav>Home | About</nav>
` + body + `
<footer>Copyright</footer>
</body></html>`
}

func TestExtractPrefersArticle(t *testing.T) {
	a, err := ExtractFromHTML("https://example.com/a", page(
		`<main><p>short main</p><article><h2>Guide</h2><p>`+longParagraph+`</p><aside>related links</aside></article></main>`))
	require.NoError(t, err)
	assert.Equal(t, "OG Title", a.Title)
	assert.Equal(t, "Jane Roofer", a.Byline)
	assert.Equal(t, "2024-03-01T10:00:00Z", a.Published)
	assert.Equal(t, "article", a.Selector)
	assert.True(t, strings.HasPrefix(a.Text, "Guide\nRoof repair"))
	assert.NotContains(t, a.Text, "related links")
	assert.NotContains(t, a.Text, "Home | About")
	assert.Greater(t, a.WordCount, 50)
}

func TestExtractFallsBackToLongestCandidate(t *testing.T) {
	a, err := ExtractFromHTML("u", page(
		`<div class="post-content x">a bit longer text here</div><div id="content">tiny</div>`))
	require.NoError(t, err)
	assert.Equal(t, ".post-content", a.Selector)
	assert.Equal(t, "a bit longer text here", a.Text)
}

func TestExtractCountsCharactersNotBytes(t *testing.T) {
	short := strings.Repeat("屋根修理", 30)
	a, err := ExtractFromHTML("u", page(`<article>`+short+`</article><div class="post-content">`+longParagraph+`</div>`))
	require.NoError(t, err)
	assert.Equal(t, ".post-content", a.Selector)

	long := strings.Repeat("屋根修理", 60)
	a, err = ExtractFromHTML("u", page(`<article>`+long+`</article><div class="post-content">`+longParagraph+`</div>`))
	require.NoError(t, err)
	assert.Equal(t, "article", a.Selector)
	assert.Equal(t, long, a.Text)
}

func TestExtractItempropAndBody(t *testing.T) {
	a, err := ExtractFromHTML("u", page(`<div itemprop="articleBody"><p>`+longParagraph+`</p></div>`))
	require.NoError(t, err)
	assert.Equal(t, "[itemprop=articleBody]", a.Selector)

	a, err = ExtractFromHTML("u", `<html><head><title> Plain </title></head><body><p>just body text</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "body", a.Selector)
	assert.Equal(t, "Plain", a.Title)
	assert.Equal(t, "just body text", a.Text)
}

func TestExtractNoContent(t *testing.T) {
	_, err := ExtractFromHTML("u", `<html><body><script>x()</script></body></html>`)
	assert.ErrorIs(t, err, ErrNoContent)
}

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	inFlight int32
	peak     int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	body, ok := f.pages[url]
	f.mu.Unlock()
	select {
	case <-time.After(5 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if !ok {
		return "", errors.New("404")
	}
	return body, nil
}

func TestExtractAllKeepsOrderAndRecordsFailures(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"a": page(`<article><p>` + longParagraph + `</p></article>`),
		"c": page(`<article><p>Cheap car insurance quotes compared.</p></article>`),
	}}
	cl, err := detect.NewClassifier("")
	require.NoError(t, err)
	ex := NewExtractor(f, cl, 2, 0)

	res, err := ex.ExtractAll(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, "a", res[0].URL)
	assert.Empty(t, res[0].Err)
	assert.Equal(t, "home_services", res[0].Category.Category)
	assert.Equal(t, "404", res[1].Err)
	assert.Equal(t, "b", res[1].URL)
	assert.Equal(t, "insurance", res[2].Category.Category)
	assert.NotEmpty(t, res[3].Err)
	assert.LessOrEqual(t, f.peak, int32(2))
}

func TestExtractAllHonoursCancellation(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	ex := NewExtractor(f, nil, 1, 0.001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ex.ExtractAll(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
}
