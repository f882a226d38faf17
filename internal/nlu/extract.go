package nlu

import "strings"

// extractJSONObject pulls the first balanced JSON object out of a completion,
// tolerating surrounding prose and markdown fences.
func extractJSONObject(s string) string {
	s = stripFences(s)
	return extractBalanced(s, '{', '}')
}

// extractJSONArray pulls the first balanced JSON array out of a completion.
func extractJSONArray(s string) string {
	s = stripFences(s)
	return extractBalanced(s, '[', ']')
}

func stripFences(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		rest = rest[nl+1:]
	}
	if end := strings.LastIndex(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func extractBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
