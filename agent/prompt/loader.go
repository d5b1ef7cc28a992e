package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/initial_draft.txt
	initialDraftRaw string

	//go:embed template/next_question.txt
	nextQuestionRaw string

	//go:embed template/synthesize_answer.txt
	synthesizeAnswerRaw string

	//go:embed template/denoise.txt
	denoiseRaw string

	//go:embed template/final_report.txt
	finalReportRaw string

	//go:embed template/judge_answer.txt
	judgeAnswerRaw string

	//go:embed template/judge_report.txt
	judgeReportRaw string

	//go:embed template/variant.txt
	variantRaw string

	//go:embed template/revise.txt
	reviseRaw string

	//go:embed template/merge.txt
	mergeRaw string
)

// PromptSet holds the system prompts of every pipeline.
type PromptSet struct {
	Planner          string
	InitialDraft     string
	NextQuestion     string
	SynthesizeAnswer string
	Denoise          string
	FinalReport      string
	JudgeAnswer      string
	JudgeReport      string
	Variant          string
	Revise           string
	Merge            string
}

// LoadPromptSet returns the embedded prompts, trimmed. Safe to call
// concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:          strings.TrimSpace(plannerRaw),
		InitialDraft:     strings.TrimSpace(initialDraftRaw),
		NextQuestion:     strings.TrimSpace(nextQuestionRaw),
		SynthesizeAnswer: strings.TrimSpace(synthesizeAnswerRaw),
		Denoise:          strings.TrimSpace(denoiseRaw),
		FinalReport:      strings.TrimSpace(finalReportRaw),
		JudgeAnswer:      strings.TrimSpace(judgeAnswerRaw),
		JudgeReport:      strings.TrimSpace(judgeReportRaw),
		Variant:          strings.TrimSpace(variantRaw),
		Revise:           strings.TrimSpace(reviseRaw),
		Merge:            strings.TrimSpace(mergeRaw),
	}
}

// User-message templates for the pipelines, FString slot syntax. They live
// beside the system prompts so the slot inventory is maintained in one place.
const (
	PlannerUser = "{query}"

	InitialDraftUser = "Address: {address}\nBrief: {brief}\nPlan:\n{plan}\n\nWrite the initial draft."

	NextQuestionUser = "Address: {address}\nPlan:\n{plan}\nPrevious questions (most recent first):\n{previous}\nCurrent draft excerpt:\n{draft}\n\nNext question:"

	SynthesizeAnswerUser = "Question: {question}\n\nWeb results:\n{web}\n\nKnowledge base:\n{kb}\n\nAnswer:"

	DenoiseUser = "Current draft:\n{draft}\n\nLatest research:\n{latest}\n\nRevised draft:"

	FinalReportUser = "Address: {address}\nBrief: {brief}\nResearch:\n{research}\nDraft:\n{draft}\n\nWrite the final report:"

	JudgeAnswerUser = "Question: {question}\nAnswer: {answer}"

	JudgeReportUser = "Query: {query}\nReport:\n{report}"

	VariantUser = "Question: {question}\nInitial answer: {initial}"

	ReviseUser = "Question: {question}\nAnswer: {answer}\nFeedback: {feedback}\n\nImproved answer:"

	MergeUser = "Question: {question}\nCandidates:\n{candidates}"
)
