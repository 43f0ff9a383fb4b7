// Package ingestion turns CV and job posting files or URLs into raw text
// ready for normalization.
package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/cv-ranker/internal/fetch"
)

// Format is the input format of a document
type Format string

// Supported formats
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ErrUnsupportedFormat is returned for files whose extension is not handled
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is one ingested file
type Document struct {
	ID       string
	Text     string
	Metadata *Metadata
}

// DetectFormat maps a file extension to a Format
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", "":
		return FormatText, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ExtractText converts document content of the given format to plain text
func ExtractText(content string, format Format) (string, error) {
	switch format {
	case FormatHTML:
		text, err := fetch.HTMLToText(content)
		if err != nil {
			return "", fmt.Errorf("failed to extract HTML text: %w", err)
		}
		return text, nil
	case FormatMarkdown:
		return stripMarkdown(content), nil
	default:
		return content, nil
	}
}

var (
	mdHeading  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdEmphasis = regexp.MustCompile(`\*\*|__|` + "`")
	mdLink     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// stripMarkdown drops heading markers, emphasis and link targets, keeping the text
func stripMarkdown(content string) string {
	content = mdHeading.ReplaceAllString(content, "")
	content = mdLink.ReplaceAllString(content, "$1")
	return mdEmphasis.ReplaceAllString(content, "")
}

// IngestFromFile reads a text, Markdown or HTML file and returns its text with metadata
func IngestFromFile(path string) (string, *Metadata, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return "", nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("file not found: %w", err)
		}
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}

	text, err := ExtractText(string(content), format)
	if err != nil {
		return "", nil, fmt.Errorf("failed to ingest %s: %w", path, err)
	}
	return text, NewMetadata(text, path, format), nil
}

// IngestDirectory ingests every supported file of dir, sorted by name.
// A document's ID is its file name without extension. Hidden files,
// subdirectories and unsupported extensions are skipped.
func IngestDirectory(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var docs []Document
	seen := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := DetectFormat(name); err != nil {
			continue
		}

		id := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate document id %q (%s, %s)", id, prev, name)
		}
		seen[id] = name

		text, meta, err := IngestFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Text: text, Metadata: meta})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
