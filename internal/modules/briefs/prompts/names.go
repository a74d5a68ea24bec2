package prompts

type PromptName string

const (
	PromptWaveBackbone     PromptName = "wave_backbone_draft"
	PromptWaveHistorical   PromptName = "wave_historical_integration"
	PromptWaveDocuments    PromptName = "wave_document_integration"
	PromptWaveJustices     PromptName = "wave_justice_targeting"
	PromptWaveAdversarial  PromptName = "wave_adversarial_analysis"
	PromptWaveStyle        PromptName = "wave_style_conformance"
	PromptWaveCitations    PromptName = "wave_bluebook_citations"
	PromptWaveFinal        PromptName = "wave_final_consolidation"
	PromptCaseFactsExtract PromptName = "case_facts_extract"
)

// WavePrompts lists the wave prompts in execution order.
var WavePrompts = []PromptName{
	PromptWaveBackbone,
	PromptWaveHistorical,
	PromptWaveDocuments,
	PromptWaveJustices,
	PromptWaveAdversarial,
	PromptWaveStyle,
	PromptWaveCitations,
	PromptWaveFinal,
}
