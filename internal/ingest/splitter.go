package ingest

import "strings"

// SplitText slices text into chunks of at most chunkSize characters, with
// overlap characters carried between consecutive chunks so answers spanning a
// chunk boundary keep their context. Chunks are cut at the nearest newline or
// space in the back half of the window when one exists, so words and
// paragraphs survive splitting.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := boundary(runes, start, end)
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// boundary finds a cut point at or before end, preferring a newline over a
// space. It never moves past the midpoint of the window; a run of unbroken
// text is cut mid-word rather than producing a degenerate chunk.
func boundary(runes []rune, start, end int) int {
	limit := start + (end-start)/2
	for i := end; i > limit; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > limit; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return end
}
