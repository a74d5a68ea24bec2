package waves

import (
	"encoding/json"
	"strings"
)

type modelOutput struct {
	Brief       string
	Changes     []SectionChange
	SourcesUsed []string
}

type rawModelOutput struct {
	Brief       string            `json:"brief"`
	Changes     []json.RawMessage `json:"changes"`
	SourcesUsed []string          `json:"sources_used"`
}

const maxExtractAttempts = 32

// ExtractJSONObject returns the first balanced {...} block starting at or after
// from, skipping braces inside JSON strings.
func ExtractJSONObject(s string, from int) (obj string, start int, ok bool) {
	for i := from; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		depth := 0
		inStr := false
		esc := false
		for j := i; j < len(s); j++ {
			c := s[j]
			if inStr {
				switch {
				case esc:
					esc = false
				case c == '\\':
					esc = true
				case c == '"':
					inStr = false
				}
				continue
			}
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[i : j+1], i, true
				}
			}
		}
		return "", i, false
	}
	return "", -1, false
}

// stripFences removes a surrounding ``` block, with or without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, " {") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type parseStatus int

const (
	parseStructured parseStatus = iota
	// parseProse is a reply with no JSON at all; the text is the brief.
	parseProse
	// parseTruncated is a JSON object cut off before its closing brace.
	parseTruncated
	// parseMalformed is balanced JSON that does not decode to a brief.
	parseMalformed
)

// parseModelOutput never fails. Prose becomes the brief. A JSON-shaped reply
// that cannot be decoded carries whatever "brief" prefix could be recovered,
// which callers must not treat as a finished draft.
func parseModelOutput(text string) (modelOutput, parseStatus) {
	body := stripFences(text)
	pos := 0
	balanced := false
	for attempt := 0; attempt < maxExtractAttempts; attempt++ {
		obj, start, ok := ExtractJSONObject(body, pos)
		if !ok {
			break
		}
		balanced = true
		pos = start + 1
		var raw rawModelOutput
		if err := json.Unmarshal([]byte(obj), &raw); err != nil {
			continue
		}
		if strings.TrimSpace(raw.Brief) == "" {
			continue
		}
		out := modelOutput{Brief: strings.TrimSpace(raw.Brief), Changes: decodeChanges(raw.Changes)}
		for _, k := range raw.SourcesUsed {
			if k = strings.TrimSpace(k); k != "" {
				out.SourcesUsed = append(out.SourcesUsed, k)
			}
		}
		return out, parseStructured
	}
	if !strings.HasPrefix(body, "{") {
		return modelOutput{Brief: body}, parseProse
	}
	partial := modelOutput{Brief: partialBrief(body)}
	if balanced {
		return partial, parseMalformed
	}
	return partial, parseTruncated
}

// partialBrief decodes as much of the "brief" string value as is present,
// stopping at the closing quote or the end of input.
func partialBrief(body string) string {
	i := strings.Index(body, `"brief"`)
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(body[i+len(`"brief"`):], " \t\r\n")
	if !strings.HasPrefix(rest, ":") {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if !strings.HasPrefix(rest, `"`) {
		return ""
	}
	rest = rest[1:]
	end := len(rest)
	esc := false
	for j := 0; j < len(rest); j++ {
		c := rest[j]
		if esc {
			esc = false
			continue
		}
		if c == '\\' {
			esc = true
			continue
		}
		if c == '"' {
			end = j
			break
		}
	}
	lit := rest[:end]
	// a cut can land inside an escape sequence
	for k := 0; k < 8 && len(lit) > 0; k++ {
		var v string
		if err := json.Unmarshal([]byte(`"`+lit+`"`), &v); err == nil {
			return strings.TrimSpace(v)
		}
		lit = lit[:len(lit)-1]
	}
	return ""
}

// decodeChanges accepts objects or bare strings.
func decodeChanges(raw []json.RawMessage) []SectionChange {
	var out []SectionChange
	for _, r := range raw {
		var c SectionChange
		if err := json.Unmarshal(r, &c); err == nil {
			if c.Section == "" && c.Summary == "" {
				continue
			}
			if c.Type == "" {
				c.Type = ChangeNote
			}
			c.Origin = "model"
			out = append(out, c)
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err == nil && strings.TrimSpace(s) != "" {
			out = append(out, SectionChange{Type: ChangeNote, Summary: strings.TrimSpace(s), Origin: "model"})
		}
	}
	return out
}
