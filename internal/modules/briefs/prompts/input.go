package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Case
	CaseTitle         string
	DocketNumber      string
	Court             string
	ClientName        string
	Position          string
	QuestionPresented string
	CaseDescription   string
	CaseFactsJSON     string

	// Attorney direction
	ApprovedOutline string
	ChatTranscript  string

	// Brief state
	WaveNumber    int
	WaveName      string
	CurrentBrief  string
	TargetWords   string
	Instructions  string
	SourceKeysCSV string
	// Sources is the rendered source block; each entry starts with its [KEY].
	Sources        string
	ReferenceBrief string

	// Facts extraction
	DocumentsText string
}
