package extractor

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/ragmodes/internal/models"
)

func loadHTML(_ context.Context, path string) ([]models.RawUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := htmlText(f)
	if err != nil {
		return nil, err
	}
	return []models.RawUnit{{Modality: models.ModalityText, Text: content, Source: path}}, nil
}

// htmlText returns the title followed by the main content of an HTML page.
func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, footer").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	content := extractMainContent(doc)
	if title != "" && !strings.HasPrefix(content, title) {
		content = title + "\n" + content
	}
	return strings.TrimSpace(content), nil
}

func extractMainContent(doc *goquery.Document) string {
	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}
	if strings.TrimSpace(content) == "" {
		content = doc.Text()
	}

	return cleanContent(content)
}

func cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}
