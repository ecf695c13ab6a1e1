// Package chunker turns source documents into translation chunks.
//
// It reads pre-segmented chunks from JSONL, or splits raw chapter text while
// preserving paragraph and sentence integrity. Every chunk gets a stable
// position key and a sliding-window context tail from the preceding chunk so
// LLM backends can keep continuity across boundaries.
package chunker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ostrovsky/tearloop/internal"
)

const (
	// DefaultMaxChars is the default chunk size in runes.
	DefaultMaxChars = 1200
	// contextTailRunes is how much of the previous chunk is carried as
	// continuity context.
	contextTailRunes = 200
)

// ReadJSONL loads chunks from a JSONL file of {id, position_key, text}
// records, the contract with the external segmentation step. Position keys
// and missing IDs are filled from line order when absent.
func ReadJSONL(path string) ([]internal.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk file: %w", err)
	}
	defer f.Close()

	var chunks []internal.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c internal.Chunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("invalid chunk record on line %d: %w", lineNo, err)
		}
		if c.PositionKey == 0 {
			c.PositionKey = lineNo
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%04d", c.PositionKey)
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk file: %w", err)
	}
	attachContext(chunks)
	return chunks, nil
}

// SplitText splits raw text into chunks of at most maxChars runes each, with
// sequential position keys and context tails attached. maxChars ≤ 0 uses
// DefaultMaxChars.
func SplitText(text, title string, maxChars int) []internal.Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var chunks []internal.Chunk
	pos := 0
	for _, piece := range splitPieces(text, maxChars) {
		pos++
		chunks = append(chunks, internal.Chunk{
			ID:          fmt.Sprintf("%04d", pos),
			PositionKey: pos,
			Title:       title,
			Text:        piece,
		})
	}
	attachContext(chunks)
	return chunks
}

// attachContext sets each chunk's ContextTail to the tail of the chunk
// before it.
func attachContext(chunks []internal.Chunk) {
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		if len(prev) > contextTailRunes {
			prev = prev[len(prev)-contextTailRunes:]
		}
		chunks[i].ContextTail = string(prev)
	}
}

// splitPieces cuts text into pieces of at most maxChars runes, preferring in
// order: paragraph boundaries, sentence-ending punctuation, whitespace, and
// finally a hard cut.
func splitPieces(text string, maxChars int) []string {
	var pieces []string
	remaining := text
	for len([]rune(remaining)) > maxChars {
		cut := findCut(remaining, maxChars)
		if piece := strings.TrimSpace(remaining[:cut]); piece != "" {
			pieces = append(pieces, piece)
		}
		remaining = strings.TrimSpace(remaining[cut:])
	}
	if piece := strings.TrimSpace(remaining); piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}

// sentenceEnders close a sentence in both Latin and CJK punctuation.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// findCut returns the byte offset to split at, searching backwards from the
// maxChars-rune prefix for the best boundary.
func findCut(text string, maxChars int) int {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return len(text)
	}
	candidate := runes[:maxChars]
	prefix := string(candidate)

	if idx := strings.LastIndex(prefix, "\n\n"); idx > 0 {
		return idx + 2
	}

	for i := len(candidate) - 2; i > 0; i-- {
		if !sentenceEnders[candidate[i]] {
			continue
		}
		next := candidate[i+1]
		if unicode.IsSpace(next) || unicode.Is(unicode.Han, next) {
			return len(string(candidate[:i+1]))
		}
	}

	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return len(string(candidate[:i]))
		}
	}

	return len(prefix)
}
