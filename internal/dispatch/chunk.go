package dispatch

// Chunk splits text into segments of at most size runes. Boundaries fall
// at the fixed count, not at word breaks, matching the platform's hard
// message length limit.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	var parts []string
	for len(runes) > size {
		parts = append(parts, string(runes[:size]))
		runes = runes[size:]
	}
	return append(parts, string(runes))
}
