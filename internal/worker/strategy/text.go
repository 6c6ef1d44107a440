package strategy

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/rivo/uniseg"
)

// TextStats counts words, characters, grapheme clusters and lines of UTF-8 text
type TextStats struct{}

// Stats is the result of analyzing a text
type Stats struct {
	Words      int
	Characters int
	Graphemes  int
	Lines      int
}

// Process implements Strategy. Content that is not valid UTF-8 is rejected.
func (TextStats) Process(fileName string, content []byte) (string, error) {
	stats, err := Analyze(content)
	if err != nil {
		return "", domain.NewStrategyError(fileName, err)
	}

	return fmt.Sprintf("Text analysis for %s: Data size %d\nWords: %d\nCharacters: %d\nGraphemes: %d\nLines: %d\nHash: %s",
		fileName,
		len(content),
		stats.Words,
		stats.Characters,
		stats.Graphemes,
		stats.Lines,
		HashContent(content),
	), nil
}

// Analyze computes text statistics. A trailing newline does not start a new
// line, so "a\nb\n" has two lines and empty content has none.
func Analyze(content []byte) (Stats, error) {
	if !utf8.Valid(content) {
		return Stats{}, fmt.Errorf("%w: not valid UTF-8 text", domain.ErrInvalidContent)
	}

	text := string(content)
	lines := bytes.Count(content, []byte("\n"))
	if len(content) > 0 && content[len(content)-1] != '\n' {
		lines++
	}

	return Stats{
		Words:      len(strings.Fields(text)),
		Characters: utf8.RuneCount(content),
		Graphemes:  uniseg.GraphemeClusterCount(text),
		Lines:      lines,
	}, nil
}
