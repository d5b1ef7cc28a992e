package llm

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func TestGenerateFillsTemplateAndTrims(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{{Content: "  the answer  \n"}},
	}

	gen, err := NewTextGenerator(context.Background(), fake, "system prompt", "Question: {question}", "test.pipeline")
	if err != nil {
		t.Fatalf("NewTextGenerator() error = %v", err)
	}

	got, err := gen.Generate(context.Background(), map[string]any{"question": "What is the zoning?"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "the answer" {
		t.Fatalf("expected trimmed reply, got %q", got)
	}

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one model call, got %d", len(fake.inputs))
	}
	msgs := fake.inputs[0]
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
	if msgs[0].Role != schema.System || msgs[0].Content != "system prompt" {
		t.Fatalf("unexpected system message: %#v", msgs[0])
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "Question: What is the zoning?" {
		t.Fatalf("unexpected user message: %#v", msgs[1])
	}
}

func TestGenerateWrapsModelError(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{err: errors.New("model down")}

	gen, err := NewTextGenerator(context.Background(), fake, "system", "{question}", "test.pipeline")
	if err != nil {
		t.Fatalf("NewTextGenerator() error = %v", err)
	}

	_, err = gen.Generate(context.Background(), map[string]any{"question": "q"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}
