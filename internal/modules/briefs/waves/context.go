package waves

import (
	"fmt"
	"strings"
	"time"
)

type SourceKind string

const (
	KindHistorical SourceKind = "historical"
	KindDocument   SourceKind = "document"
	KindJustice    SourceKind = "justice"
	KindResearch   SourceKind = "research"
	KindReference  SourceKind = "reference"
)

var keyPrefix = map[SourceKind]string{
	KindHistorical: "H",
	KindDocument:   "D",
	KindJustice:    "J",
	KindResearch:   "R",
	KindReference:  "B",
}

// SourceDoc is one citable input. Key is the short handle used in prompts
// and [[src:KEY]] markers.
type SourceDoc struct {
	ID       string     `json:"id"`
	Key      string     `json:"key"`
	Kind     SourceKind `json:"kind"`
	Category string     `json:"category,omitempty"`
	Title    string     `json:"title"`
	Citation string     `json:"citation,omitempty"`
	Summary  string     `json:"summary,omitempty"`
	Content  string     `json:"content,omitempty"`
}

type ChatLine struct {
	Role    string    `json:"role"`
	Speaker string    `json:"speaker,omitempty"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type CaseInfo struct {
	ID                string
	Title             string
	DocketNumber      string
	Court             string
	ClientName        string
	Position          string
	QuestionPresented string
	Description       string
	FactsJSON         string
}

// WaveContext is the read-only input of one wave. Build it with NewWaveContext
// so source keys are assigned; do not modify it while a wave runs.
type WaveContext struct {
	Case               CaseInfo
	Documents          []SourceDoc
	JusticeAnalysis    []SourceDoc
	HistoricalResearch []SourceDoc
	Research           []SourceDoc
	ReferenceBrief     *SourceDoc
	ChatTranscript     []ChatLine
	ApprovedOutline    string
}

// NewWaveContext copies its inputs and assigns stable keys (H1, D1, J1, R1, B1)
// in the order given.
func NewWaveContext(
	c CaseInfo,
	outline string,
	documents, justices, historical, research []SourceDoc,
	reference *SourceDoc,
	chat []ChatLine,
) *WaveContext {
	wc := &WaveContext{
		Case:               c,
		ApprovedOutline:    outline,
		Documents:          keyed(KindDocument, documents),
		JusticeAnalysis:    keyed(KindJustice, justices),
		HistoricalResearch: keyed(KindHistorical, historical),
		Research:           keyed(KindResearch, research),
		ChatTranscript:     append([]ChatLine(nil), chat...),
	}
	if reference != nil {
		ref := *reference
		ref.Kind = KindReference
		ref.Key = keyPrefix[KindReference] + "1"
		wc.ReferenceBrief = &ref
	}
	return wc
}

func keyed(kind SourceKind, in []SourceDoc) []SourceDoc {
	out := make([]SourceDoc, len(in))
	for i, d := range in {
		d.Kind = kind
		d.Key = fmt.Sprintf("%s%d", keyPrefix[kind], i+1)
		out[i] = d
	}
	return out
}

// DocumentSummaries derives "title: summary" lines from the selected documents.
func (wc *WaveContext) DocumentSummaries() []string {
	var out []string
	for _, d := range wc.Documents {
		if s := strings.TrimSpace(d.Summary); s != "" {
			out = append(out, d.Title+": "+s)
		}
	}
	return out
}

// SourcesFor returns the sources of the given groups, in group order.
func (wc *WaveContext) SourcesFor(def WaveDef) []SourceDoc {
	var out []SourceDoc
	for _, g := range def.Sources {
		switch g {
		case GroupHistorical:
			out = append(out, wc.HistoricalResearch...)
		case GroupDocuments:
			out = append(out, wc.Documents...)
		case GroupJustices:
			out = append(out, wc.JusticeAnalysis...)
		case GroupResearch:
			out = append(out, wc.Research...)
		case GroupReference:
			if wc.ReferenceBrief != nil {
				out = append(out, *wc.ReferenceBrief)
			}
		}
	}
	return out
}

func (wc *WaveContext) renderChat() string {
	var b strings.Builder
	for _, l := range wc.ChatTranscript {
		who := strings.TrimSpace(l.Speaker)
		if who == "" {
			who = l.Role
		}
		fmt.Fprintf(&b, "%s: %s\n", who, strings.TrimSpace(l.Content))
	}
	return strings.TrimSpace(b.String())
}

const maxSourceExcerpt = 6000

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + " ..."
}

func renderSources(docs []SourceDoc) string {
	var b strings.Builder
	for _, d := range docs {
		if d.Kind == KindReference {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s", d.Key, d.Title)
		if d.Citation != "" {
			fmt.Fprintf(&b, " (%s)", d.Citation)
		}
		b.WriteString("\n")
		if s := strings.TrimSpace(d.Summary); s != "" {
			fmt.Fprintf(&b, "Summary: %s\n", s)
		}
		if c := strings.TrimSpace(d.Content); c != "" {
			fmt.Fprintf(&b, "Excerpt: %s\n", truncate(c, maxSourceExcerpt))
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func sourceKeys(docs []SourceDoc) []string {
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	return keys
}
