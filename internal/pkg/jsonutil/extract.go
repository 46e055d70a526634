// Package jsonutil recovers JSON documents from model-written text.
package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
)

const codeFence = "```"

// ExtractObject returns the first valid JSON object or array in raw. A
// fenced block wins over bare text; a leading language tag on the fence is
// skipped.
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if gjson.Valid(raw) && (raw[0] == '{' || raw[0] == '[') {
		return raw, true
	}
	if block, ok := fenced(raw); ok {
		if out, ok := balanced(block); ok {
			return out, true
		}
	}
	return balanced(raw)
}

func fenced(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end < 0 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	if nl := strings.IndexByte(block, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(block[:nl]); tag != "" && !strings.ContainsAny(tag, "[{") {
			block = block[nl+1:]
		}
	}
	return strings.TrimSpace(block), true
}

// balanced scans for the first bracketed span that parses as JSON.
func balanced(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if end := closing(s, i); end > 0 {
			if cand := s[i : end+1]; gjson.Valid(cand) {
				return cand, true
			}
		}
	}
	return "", false
}

func closing(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
