package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidParams is returned when chunking parameters do not satisfy
// 0 < overlap < size.
var ErrInvalidParams = errors.New("chunker: overlap must satisfy 0 < overlap < size")

// Split cuts text into overlapping fixed-size windows. Each window covers
// [start, start+size) in character offsets and is trimmed of surrounding
// whitespace; windows that trim to nothing are dropped. The start offset
// advances by size-overlap each step, so consecutive chunks share overlap
// characters of context. The loop stops once a window reaches the end of
// the text; trailing text already covered by the previous window never
// produces an extra chunk.
//
// Empty or whitespace-only input yields an empty result, not an error.
// Text shorter than size yields at most one chunk. Split is pure and safe
// to call concurrently.
func Split(text string, size, overlap int) ([]string, error) {
	if overlap <= 0 || overlap >= size {
		return nil, ErrInvalidParams
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; ; start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}
	}
	return chunks, nil
}

// Count returns the number of chunks Split would produce for text.
func Count(text string, size, overlap int) (int, error) {
	chunks, err := Split(text, size, overlap)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}
