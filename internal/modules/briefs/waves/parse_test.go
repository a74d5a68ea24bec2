package waves

import "testing"

func TestExtractJSONObjectSkipsBracesInStrings(t *testing.T) {
	s := `preface {"brief": "a } tricky { \"quoted\" brace", "n": {"x": 1}} trailing`
	obj, start, ok := ExtractJSONObject(s, 0)
	if !ok || start != 8 || obj != `{"brief": "a } tricky { \"quoted\" brace", "n": {"x": 1}}` {
		t.Fatalf("obj=%q start=%d ok=%v", obj, start, ok)
	}
	if _, _, ok := ExtractJSONObject("no braces", 0); ok {
		t.Fatalf("expected no object")
	}
	if _, _, ok := ExtractJSONObject(`{"unterminated": 1`, 0); ok {
		t.Fatalf("expected unbalanced object to fail")
	}
}

func TestParseModelOutput(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		brief  string
		status parseStatus
	}{
		{"plain json", `{"brief":"B","changes":[],"sources_used":["H1"]}`, "B", parseStructured},
		{"fenced json", "```json\n{\"brief\":\"B\"}\n```", "B", parseStructured},
		{"prose around json", "Here you go: {\"brief\":\"B\"} thanks", "B", parseStructured},
		{"skips non-brief object", `{"note": 1} then {"brief":"B"}`, "B", parseStructured},
		{"empty brief is malformed", `{"brief":""}`, "", parseMalformed},
		{"invalid json is malformed", `{"brief": 12, "changes": [}`, "", parseMalformed},
		{"not json", "Just a brief.", "Just a brief.", parseProse},
		{"cut mid string", `{"brief": "# Brief\n\n## Argument\n\nThe statute fails because`, "# Brief\n\n## Argument\n\nThe statute fails because", parseTruncated},
		{"cut inside escape", `{"brief": "Line one\`, "Line one", parseTruncated},
		{"cut after brief", `{"brief": "Done.", "changes": [{"section": "Arg`, "Done.", parseTruncated},
		{"cut before brief", `{"changes": [`, "", parseTruncated},
	}
	for _, tc := range cases {
		out, status := parseModelOutput(tc.in)
		if out.Brief != tc.brief || status != tc.status {
			t.Fatalf("%s: brief=%q status=%d", tc.name, out.Brief, status)
		}
	}
}

func TestDecodeChangesToleratesStrings(t *testing.T) {
	out, _ := parseModelOutput(`{"brief":"B","changes":["note one",{"section":"Argument"},{"foo":1}]}`)
	if len(out.Changes) != 2 || out.Changes[0].Summary != "note one" || out.Changes[1].Type != ChangeNote {
		t.Fatalf("changes=%+v", out.Changes)
	}
}
