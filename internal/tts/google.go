package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGoogleTTSURL  = "https://translate.google.com/translate_tts"
	googleRequestTimeout = 10 * time.Second

	// Google Translate rejects longer queries.
	googleMaxChars = 200
)

// GoogleTranslate speaks text through Google Translate's free endpoint.
// It has a single voice per language, so the voice argument is ignored.
type GoogleTranslate struct {
	baseURL  string
	language string
	client   *http.Client
}

// GoogleOption configures a GoogleTranslate synthesizer.
type GoogleOption func(*GoogleTranslate)

// WithGoogleBaseURL overrides the endpoint (for testing).
func WithGoogleBaseURL(u string) GoogleOption {
	return func(g *GoogleTranslate) { g.baseURL = u }
}

// WithLanguage sets the spoken language code.
func WithLanguage(lang string) GoogleOption {
	return func(g *GoogleTranslate) {
		if lang != "" {
			g.language = lang
		}
	}
}

// NewGoogleTranslate creates the fallback synthesizer.
func NewGoogleTranslate(opts ...GoogleOption) *GoogleTranslate {
	g := &GoogleTranslate{
		baseURL:  defaultGoogleTTSURL,
		language: "en",
		client:   &http.Client{Timeout: googleRequestTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GoogleTranslate) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	chunks := splitText(text, googleMaxChars)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	// mp3 frames concatenate cleanly, so long text is fetched piecewise.
	var out bytes.Buffer
	for _, chunk := range chunks {
		if err := g.fetch(ctx, chunk, &out); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func (g *GoogleTranslate) fetch(ctx context.Context, text string, w io.Writer) error {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("q", text)
	params.Set("tl", g.language)
	params.Set("client", "tw-ob")
	params.Set("textlen", strconv.Itoa(len(text)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	// Google refuses requests without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google tts unexpected status code: %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	return nil
}

// splitText breaks text into pieces of at most limit bytes on word boundaries.
// A single word longer than limit is cut.
func splitText(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		for len(word) > limit {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			chunks = append(chunks, word[:limit])
			word = word[limit:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(word) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
