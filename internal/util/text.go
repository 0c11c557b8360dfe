package util

import "strings"

const fence = "```"

// StripJSONFences removes every "```json" and "```" marker from model output
// and trims the result. Use it for replies that must be a bare JSON document.
func StripJSONFences(s string) string {
	s = strings.ReplaceAll(s, fence+"json", "")
	s = strings.ReplaceAll(s, fence, "")
	return strings.TrimSpace(s)
}

// StripCodeFences trims whitespace and removes a Markdown code fence
// (```lang ... ```) only when it wraps the whole text. Any other fence is
// part of the content and left alone.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2*len(fence) || !strings.HasPrefix(s, fence) || !strings.HasSuffix(s, fence) {
		return s
	}

	inner := s[len(fence) : len(s)-len(fence)]
	if strings.Contains(inner, fence) {
		// Several blocks, e.g. "```a``` text ```b```".
		return s
	}
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if info := strings.TrimSpace(inner[:nl]); !strings.ContainsAny(info, " {[\"") {
			inner = inner[nl+1:]
		}
	}

	return strings.TrimSpace(inner)
}
