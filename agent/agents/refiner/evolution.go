package refiner

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
	llmx "github.com/warat-b/sitescope/agent/llm"
	promptx "github.com/warat-b/sitescope/agent/prompt"
)

type EvolutionConfig struct {
	NumVariants   int     `envconfig:"NUM_VARIANTS" split_words:"true" default:"2"`
	NumIterations int     `envconfig:"NUM_ITERATIONS" split_words:"true" default:"1"`
	ScoreTarget   float64 `envconfig:"SCORE_TARGET" split_words:"true" default:"8.0"`
}

func (c EvolutionConfig) normalized() EvolutionConfig {
	if c.NumVariants <= 0 {
		c.NumVariants = 2
	}
	if c.NumIterations <= 0 {
		c.NumIterations = 1
	}
	if c.ScoreTarget <= 0 {
		c.ScoreTarget = 8.0
	}
	return c
}

// Evolution hedges against single-sample variance: several independent
// candidate answers are generated, each is revised under judge feedback,
// and one merge call collapses them.
type Evolution struct {
	variantGen contractx.TextGenerator
	reviseGen  contractx.TextGenerator
	mergeGen   contractx.TextGenerator
	evaluator  contractx.Evaluator
	cfg        EvolutionConfig
}

var _ contractx.Evolver = (*Evolution)(nil)

func NewEvolution(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	evaluator contractx.Evaluator,
	prompts promptx.PromptSet,
	cfg EvolutionConfig,
) (*Evolution, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("%w: evaluator is required", contractx.ErrValidation)
	}

	variantGen, err := llmx.NewTextGenerator(ctx, chatModel, prompts.Variant, promptx.VariantUser, "refiner.variant")
	if err != nil {
		return nil, err
	}
	reviseGen, err := llmx.NewTextGenerator(ctx, chatModel, prompts.Revise, promptx.ReviseUser, "refiner.revise")
	if err != nil {
		return nil, err
	}
	mergeGen, err := llmx.NewTextGenerator(ctx, chatModel, prompts.Merge, promptx.MergeUser, "refiner.merge")
	if err != nil {
		return nil, err
	}

	return &Evolution{
		variantGen: variantGen,
		reviseGen:  reviseGen,
		mergeGen:   mergeGen,
		evaluator:  evaluator,
		cfg:        cfg.normalized(),
	}, nil
}

// EvolveAnswer generates independent variants of the initial answer,
// evolves each one under judge feedback, and merges the survivors.
func (e *Evolution) EvolveAnswer(ctx context.Context, question, initial string) (string, error) {
	variants := make([]string, 0, e.cfg.NumVariants)
	for i := 0; i < e.cfg.NumVariants; i++ {
		variant, err := e.variantGen.Generate(ctx, map[string]any{
			"question": question,
			"initial":  initial,
		})
		if err != nil {
			return "", err
		}
		variants = append(variants, variant)
	}

	for i, variant := range variants {
		evolved, err := e.evolveVariant(ctx, question, variant)
		if err != nil {
			return "", err
		}
		variants[i] = evolved
	}

	return e.mergeVariants(ctx, question, variants)
}

// evolveVariant revises a candidate for up to NumIterations rounds and
// stops early once the judge score reaches the target.
func (e *Evolution) evolveVariant(ctx context.Context, question, variant string) (string, error) {
	current := variant
	for i := 0; i < e.cfg.NumIterations; i++ {
		eval, err := e.evaluator.EvaluateAnswer(ctx, question, current)
		if err != nil {
			return "", err
		}
		if eval.Score >= e.cfg.ScoreTarget {
			log.Debug().Float64("score", eval.Score).Int("iteration", i).Msg("variant reached score target")
			break
		}

		current, err = e.reviseGen.Generate(ctx, map[string]any{
			"question": question,
			"answer":   current,
			"feedback": eval.Feedback,
		})
		if err != nil {
			return "", err
		}
	}
	return current, nil
}

func (e *Evolution) mergeVariants(ctx context.Context, question string, variants []string) (string, error) {
	blocks := make([]string, 0, len(variants))
	for i, v := range variants {
		blocks = append(blocks, fmt.Sprintf("Variant %d:\n%s", i+1, v))
	}

	return e.mergeGen.Generate(ctx, map[string]any{
		"question":   question,
		"candidates": strings.Join(blocks, "\n\n---\n\n"),
	})
}
