package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/warat-b/sitescope/agent/contract"
	openrouterx "github.com/warat-b/sitescope/pkg/openrouter"
)

// Config carries the default model settings plus optional per-role overrides.
// The researcher role always uses the default model; planner, evaluator and
// writer may be pointed at cheaper or stronger models independently.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"4000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	PlannerModel         string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	EvaluatorModel       string  `envconfig:"EVALUATOR_MODEL" split_words:"true"`
	WriterModel          string  `envconfig:"WRITER_MODEL" split_words:"true"`
	PlannerTemperature   float32 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"-1"`
	EvaluatorTemperature float32 `envconfig:"EVALUATOR_TEMPERATURE" split_words:"true" default:"-1"`
	WriterTemperature    float32 `envconfig:"WRITER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(role contractx.Role) openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	base := openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}

	switch role {
	case contractx.RolePlanner:
		return base.WithModel(c.PlannerModel).WithTemperature(c.PlannerTemperature)
	case contractx.RoleEvaluator:
		return base.WithModel(c.EvaluatorModel).WithTemperature(c.EvaluatorTemperature)
	case contractx.RoleWriter:
		return base.WithModel(c.WriterModel).WithTemperature(c.WriterTemperature)
	}
	return base
}
