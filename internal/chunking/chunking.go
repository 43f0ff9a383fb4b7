// Package chunking cuts requirement and candidate text into retrievable chunks
// and splits long chunks into embeddable fragments.
package chunking

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/cv-ranker/internal/types"
)

// DefaultMaxChunkChars bounds the length of a grouped chunk
const DefaultMaxChunkChars = 300

// bulletChars are stripped from both ends of every line
const bulletChars = "-•*·–▪ \t"

// SourceRef builds the reference of the n-th chunk of document id
func SourceRef(id string, n int) string {
	return fmt.Sprintf("%s#%d", id, n)
}

// BelongsTo reports whether ref was produced by SourceRef for document id.
// The owner is everything before the last '#', so ids may contain '#'.
func BelongsTo(ref, id string) bool {
	i := strings.LastIndex(ref, "#")
	return i >= 0 && ref[:i] == id
}

// Chunk splits text into lines, strips bullet markers and groups consecutive
// lines into chunks shorter than maxChars. A single line longer than maxChars
// becomes its own chunk. Chunk references are SourceRef(id, n).
func Chunk(text types.NormalizedText, id string, maxChars int) []types.Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var parts []string
	for _, line := range strings.Split(text.String(), "\n") {
		if p := strings.Trim(line, bulletChars); p != "" {
			parts = append(parts, p)
		}
	}

	var grouped []string
	buf := ""
	for _, p := range parts {
		joined := utf8.RuneCountInString(p)
		if buf != "" {
			joined += utf8.RuneCountInString(buf) + 1
		}
		if joined < maxChars {
			if buf == "" {
				buf = p
			} else {
				buf += " " + p
			}
			continue
		}
		if buf != "" {
			grouped = append(grouped, buf)
		}
		buf = p
	}
	if buf != "" {
		grouped = append(grouped, buf)
	}

	chunks := make([]types.Chunk, 0, len(grouped))
	for i, g := range grouped {
		chunks = append(chunks, types.Chunk{Text: g, SourceRef: SourceRef(id, i)})
	}
	return chunks
}

// SplitConfig controls fragment splitting of long chunks
type SplitConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultSplitConfig returns the fragment settings used by the vector index
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		MaxChars:  500,
		MinChars:  200,
		Overlap:   80,
		MaxChunks: 20,
	}
}

// Split cuts text into fragments of at most MaxChars runes, preferring to cut
// at whitespace after MinChars, with Overlap runes shared between neighbours.
// Text that fits in one fragment is returned whole. Empty text yields nil.
func Split(text string, cfg SplitConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultSplitConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	fragments := make([]string, 0, len(runes)/cfg.MaxChars+1)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(fragments) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if f := strings.TrimSpace(string(runes[start:end])); f != "" {
			fragments = append(fragments, f)
		}
		if end >= len(runes) {
			break
		}

		next := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			next = end - cfg.Overlap
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return fragments
}
