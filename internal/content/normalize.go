package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"

	"github.com/rubberband/rubberband/internal/errs"
)

// Format identifies how an incoming body should be interpreted.
type Format string

const (
	FormatPlaintext Format = "plaintext"
	FormatMarkdown  Format = "markdown"
	FormatHTML      Format = "html"
)

// ParseFormat maps a declared format string (case-insensitive, including the
// short aliases txt/md/htm) onto a canonical Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plaintext", "txt":
		return FormatPlaintext, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %q", errs.ErrUnsupportedFormat, s)
}

// Normalize converts raw content bytes into the canonical plain-text
// representation used for indexing. Pure function of its inputs.
func Normalize(raw []byte, format Format) (string, error) {
	switch format {
	case FormatPlaintext:
		return string(raw), nil
	case FormatMarkdown:
		var buf bytes.Buffer
		if err := goldmark.Convert(raw, &buf); err != nil {
			return "", fmt.Errorf("render markdown: %w", err)
		}
		return stripTags(buf.Bytes()), nil
	case FormatHTML:
		return stripTags(raw), nil
	}
	return "", fmt.Errorf("%w: %q", errs.ErrUnsupportedFormat, format)
}

// stripTags walks the HTML token stream and keeps only text content.
// Adjacent element texts are joined with a single space so word boundaries
// survive tag removal; script and style bodies are discarded entirely.
func stripTags(raw []byte) string {
	tok := html.NewTokenizer(bytes.NewReader(raw))
	var parts []string
	skipDepth := 0
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.StartTagToken:
			name, _ := tok.TagName()
			if skippableTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if skippableTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tok.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func skippableTag(name string) bool {
	return name == "script" || name == "style" || name == "noscript"
}
