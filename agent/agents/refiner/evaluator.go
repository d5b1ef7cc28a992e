// Package refiner holds the LLM-as-judge evaluator and the self-evolution
// answer refinement built on top of it.
package refiner

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/warat-b/sitescope/agent/contract"
	llmx "github.com/warat-b/sitescope/agent/llm"
	promptx "github.com/warat-b/sitescope/agent/prompt"
)

const (
	defaultScore = 5.0
	minScore     = 0.0
	maxScore     = 10.0
)

var (
	scoreRe    = regexp.MustCompile(`(?i)Score:\s*(-?\d+(?:\.\d+)?)`)
	feedbackRe = regexp.MustCompile(`(?is)Feedback:\s*(.+)`)
)

// Evaluator scores answers and reports on a 0-10 scale with free-text
// feedback. Stateless; safe for concurrent use.
type Evaluator struct {
	answerGen contractx.TextGenerator
	reportGen contractx.TextGenerator
}

var _ contractx.Evaluator = (*Evaluator)(nil)

func NewEvaluator(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	judgeAnswerPrompt string,
	judgeReportPrompt string,
) (*Evaluator, error) {
	answerGen, err := llmx.NewTextGenerator(ctx, chatModel, judgeAnswerPrompt, promptx.JudgeAnswerUser, "refiner.judge_answer")
	if err != nil {
		return nil, err
	}
	reportGen, err := llmx.NewTextGenerator(ctx, chatModel, judgeReportPrompt, promptx.JudgeReportUser, "refiner.judge_report")
	if err != nil {
		return nil, err
	}
	return &Evaluator{answerGen: answerGen, reportGen: reportGen}, nil
}

func (e *Evaluator) EvaluateAnswer(ctx context.Context, question, answer string) (contractx.Evaluation, error) {
	reply, err := e.answerGen.Generate(ctx, map[string]any{
		"question": question,
		"answer":   answer,
	})
	if err != nil {
		return contractx.Evaluation{}, err
	}
	return parseEvaluation(reply), nil
}

func (e *Evaluator) EvaluateReport(ctx context.Context, query, report string) (contractx.Evaluation, error) {
	reply, err := e.reportGen.Generate(ctx, map[string]any{
		"query":  query,
		"report": report,
	})
	if err != nil {
		return contractx.Evaluation{}, err
	}
	return parseEvaluation(reply), nil
}

// parseEvaluation extracts the two-line judge shape. A missing or
// unparseable score defaults to 5.0; missing feedback falls back to the
// whole reply. Scores are clamped to the 0-10 scale so out-of-range judge
// output cannot leak into threshold comparisons.
func parseEvaluation(reply string) contractx.Evaluation {
	score := defaultScore
	if m := scoreRe.FindStringSubmatch(reply); m != nil {
		if parsed, err := strconv.ParseFloat(m[1], 64); err == nil {
			score = parsed
		}
	}
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}

	feedback := strings.TrimSpace(reply)
	if m := feedbackRe.FindStringSubmatch(reply); m != nil {
		feedback = strings.TrimSpace(m[1])
	}

	return contractx.Evaluation{Score: score, Feedback: feedback}
}
