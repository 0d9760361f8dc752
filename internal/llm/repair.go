package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// ExtractJSON pulls the JSON object out of a model response: code fences are
// stripped and prose around the outermost braces is discarded.
func ExtractJSON(response string) string {
	s := strings.TrimSpace(response)

	if open := strings.Index(s, "```"); open >= 0 {
		rest := s[open+3:]
		rest = strings.TrimPrefix(rest, "json")
		if closing := strings.Index(rest, "```"); closing >= 0 {
			s = strings.TrimSpace(rest[:closing])
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// RepairJSON returns the input unchanged when it already parses, then walks
// a short ladder of mechanical fixes for the damage models actually produce
// (trailing commas, truncated completions), falling back to the jsonrepair
// library for anything fancier.
func RepairJSON(input string) (string, error) {
	if json.Valid([]byte(input)) {
		return input, nil
	}

	repaired := trailingCommaRe.ReplaceAllString(input, "$1")
	if json.Valid([]byte(repaired)) {
		log.Debug().Msg("repaired JSON by removing trailing commas")
		return repaired, nil
	}

	completed := completeBrackets(repaired)
	if json.Valid([]byte(completed)) {
		log.Debug().Msg("repaired JSON by completing brackets")
		return completed, nil
	}

	fixed, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return "", fmt.Errorf("could not repair JSON: %w", err)
	}
	log.Debug().Msg("repaired JSON via jsonrepair")
	return fixed, nil
}

// completeBrackets closes the braces and brackets a truncated completion
// left open. String contents are respected, including escapes.
func completeBrackets(input string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, ch)
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := input
	if inString {
		out += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}
