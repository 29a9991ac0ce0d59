package document

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one bounded-size piece of a document, the unit of embedding.
// Index is dense starting at 0 within its source file.
type Chunk struct {
	Index int
	Text  string
}

// ChunkText splits text into chunks of at most maxChunkSize bytes, cut at
// UTF-8 character boundaries, preferring natural break points. Consecutive
// chunks overlap by roughly overlap bytes. Sizes are byte counts; boundary
// snapping keeps every chunk valid UTF-8.
func ChunkText(text string, maxChunkSize, overlap int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= maxChunkSize {
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(text) {
		end := ceilCharBoundary(text, min(start+maxChunkSize, len(text)))

		actualEnd := end
		if end < len(text) {
			actualEnd = findBreakPoint(text, start, end)
		}

		if chunk := strings.TrimSpace(text[start:actualEnd]); chunk != "" {
			chunks = append(chunks, Chunk{Index: index, Text: chunk})
			index++
		}

		nextStart := actualEnd
		if actualEnd > overlap {
			nextStart = floorCharBoundary(text, actualEnd-overlap)
		}

		// Overlap must never stall the cursor.
		if nextStart <= start {
			start = actualEnd
		} else {
			start = nextStart
		}
	}

	return chunks
}

// findBreakPoint scans [start, maxEnd) from the right for the best natural
// break: paragraph, then line, then sentence end, then word boundary. The
// returned position is just past the separator. Falls back to maxEnd.
func findBreakPoint(text string, start, maxEnd int) int {
	segment := text[start:maxEnd]

	if pos := strings.LastIndex(segment, "\n\n"); pos >= 0 {
		return start + pos + 2
	}
	if pos := strings.LastIndex(segment, "\n"); pos >= 0 {
		return start + pos + 1
	}
	for _, sentinel := range []string{"。", "？", "！", ". ", "? ", "! "} {
		if pos := strings.LastIndex(segment, sentinel); pos >= 0 {
			return start + pos + len(sentinel)
		}
	}
	if pos := strings.LastIndex(segment, " "); pos >= 0 {
		return start + pos + 1
	}
	return maxEnd
}

// ceilCharBoundary rounds a byte position up to the nearest UTF-8 boundary.
func ceilCharBoundary(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}

// floorCharBoundary rounds a byte position down to the nearest UTF-8 boundary.
func floorCharBoundary(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}
