package waves

import (
	"regexp"
	"strings"
)

var (
	markerRe      = regexp.MustCompile(`\s?\[\[src:([A-Za-z0-9_-]+)\]\]`)
	placeholderRe = regexp.MustCompile(`(?i)\[CITATION NEEDED[^\]]*\]`)
	reporterRe    = regexp.MustCompile(`\b\d{1,4}\s+(?:U\.S\.|S\.\s?Ct\.|L\.\s?Ed\.(?:\s?2d)?|F\.\s?Supp\.(?:\s?[23]d)?|F\.(?:2d|3d|4th)?)\s+\d{1,5}`)
	codeRe        = regexp.MustCompile(`\b\d{1,2}\s+U\.S\.C\.(?:A\.)?\s+§+\s*\d+`)
	headingRe     = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
)

// StripMarkers removes [[src:KEY]] markers and the space before them.
func StripMarkers(text string) string {
	return markerRe.ReplaceAllString(text, "")
}

func CountWords(text string) int {
	return len(strings.Fields(StripMarkers(text)))
}

// CountCitations counts reporter and U.S. Code citations.
func CountCitations(text string) int {
	return len(reporterRe.FindAllStringIndex(text, -1)) + len(codeRe.FindAllStringIndex(text, -1))
}

func CountPlaceholders(text string) int {
	return len(placeholderRe.FindAllStringIndex(text, -1))
}

// MarkerKeys lists distinct marker keys in first-appearance order.
func MarkerKeys(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

type section struct {
	Heading string
	Body    string
}

// preambleSection names text before the first heading.
const preambleSection = "(preamble)"

func splitSections(text string) []section {
	var out []section
	cur := section{Heading: preambleSection}
	var body strings.Builder
	flush := func() {
		cur.Body = strings.TrimSpace(body.String())
		if cur.Heading != preambleSection || cur.Body != "" {
			out = append(out, cur)
		}
		body.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			cur = section{Heading: strings.TrimSpace(m[1])}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return out
}

func normHeading(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func normBody(b string) string {
	return strings.Join(strings.Fields(StripMarkers(b)), " ")
}

// DiffSections compares headings of prev and next. Sections present in both
// with different text are reported as modified.
func DiffSections(prev, next string) []SectionChange {
	prevSecs, nextSecs := splitSections(prev), splitSections(next)
	prevOrder, prevTitles, prevBodies := indexSections(prevSecs)
	nextOrder, nextTitles, nextBodies := indexSections(nextSecs)

	var out []SectionChange
	for _, k := range nextOrder {
		old, existed := prevBodies[k]
		switch {
		case !existed:
			out = append(out, SectionChange{Section: nextTitles[k], Type: ChangeAdded, Origin: "diff"})
		case old != nextBodies[k]:
			out = append(out, SectionChange{Section: nextTitles[k], Type: ChangeModified, Origin: "diff"})
		}
	}
	for _, k := range prevOrder {
		if _, ok := nextBodies[k]; !ok {
			out = append(out, SectionChange{Section: prevTitles[k], Type: ChangeRemoved, Origin: "diff"})
		}
	}
	return out
}

// indexSections groups sections by normalized heading. Repeated headings
// share one entry whose body is the concatenation.
func indexSections(secs []section) (order []string, titles map[string]string, bodies map[string]string) {
	titles = map[string]string{}
	parts := map[string][]string{}
	for _, s := range secs {
		k := normHeading(s.Heading)
		if _, ok := titles[k]; !ok {
			order = append(order, k)
			titles[k] = s.Heading
		}
		parts[k] = append(parts[k], normBody(s.Body))
	}
	bodies = make(map[string]string, len(parts))
	for k, p := range parts {
		bodies[k] = strings.Join(p, " ")
	}
	return order, titles, bodies
}

// BuildSourceMap locates every marker by section heading and paragraph.
func BuildSourceMap(text string) map[string][]SourceLocation {
	out := map[string][]SourceLocation{}
	for _, s := range splitSections(text) {
		para := 0
		for _, p := range strings.Split(s.Body, "\n\n") {
			if strings.TrimSpace(p) == "" {
				continue
			}
			para++
			for _, k := range MarkerKeys(p) {
				out[k] = append(out[k], SourceLocation{Section: s.Heading, Paragraph: para})
			}
		}
	}
	return out
}
