package ingestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrConversionFailed  = errors.New("document conversion failed")
)

// Document is a raw policy source handed to the document store.
type Document struct {
	SourceID string
	Format   string
	Content  string
}

// DocumentStore converts raw documents into cleaned text. Parsing quality
// is explicitly out of scope; this is a collaborator boundary.
type DocumentStore interface {
	Ingest(ctx context.Context, doc Document) (string, error)
}

type standardStore struct{}

// NewDocumentStore handles HTML (stripped to body text) and plain
// text/markdown sources.
func NewDocumentStore() DocumentStore {
	return standardStore{}
}

func (standardStore) Ingest(_ context.Context, doc Document) (string, error) {
	switch strings.ToLower(doc.Format) {
	case "html":
		text, err := cleanHTML(doc.Content)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
		return text, nil
	case "text", "txt", "md", "markdown":
		return cleanText(doc.Content), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}
}

var (
	spacesPattern   = regexp.MustCompile(`[ \t]+`)
	newlinesPattern = regexp.MustCompile(`\n{3,}`)
)

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spacesPattern.ReplaceAllString(s, " ")
	s = newlinesPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func cleanHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no content extracted from HTML body")
	}

	return cleanText(text), nil
}
