package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

type textGenerator struct {
	name   string
	runner compose.Runnable[map[string]any, *schema.Message]
}

// NewTextGenerator compiles a system-prompt + user-template + model pipeline
// into a contract.TextGenerator. The user template uses FString slots, so
// neither template may contain literal braces outside slot names.
func NewTextGenerator(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	userTemplate string,
	name string,
) (contractx.TextGenerator, error) {
	runner, err := compileTextGraph(ctx, chatModel, systemPrompt, userTemplate, name)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", contractx.ErrModelInvoke, name, err)
	}
	return &textGenerator{name: name, runner: runner}, nil
}

func (g *textGenerator) Generate(ctx context.Context, vars map[string]any) (string, error) {
	msg, err := g.runner.Invoke(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, g.name, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: %s returned nil message", contractx.ErrModelInvoke, g.name)
	}
	return strings.TrimSpace(msg.Content), nil
}

func compileTextGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	userTemplate string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userTemplate),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}
