package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/opsagent/platform/core/types"
)

// Invoker runs agent prompts through an OpenAI-compatible chat
// completion stream and exposes the deltas as response fragments.
type Invoker struct {
	client *openai.Client
	model  string
}

func NewInvoker(client *openai.Client, model string) *Invoker {
	return &Invoker{client: client, model: model}
}

// Invoke starts a streamed completion for the agent's prompt. The
// returned stream is finite and not restartable; context errors surface
// from Recv.
func (i *Invoker) Invoke(ctx context.Context, agentID string, prompt string) (types.Stream, error) {
	stream, err := i.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:  i.model,
		Stream: true,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You are the operations agent %q. Carry out the task you are given and report the outcome.", agentID),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start agent invocation: %w", err)
	}
	return &chatStream{stream: stream}, nil
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

// Recv maps one streamed delta onto a fragment. io.EOF marks exhaustion,
// as in the underlying stream.
func (s *chatStream) Recv() (types.Fragment, error) {
	response, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return types.TextFragment{}, nil
	}
	delta := response.Choices[0].Delta
	if len(delta.ToolCalls) > 0 {
		call := delta.ToolCalls[0]
		return types.ToolCallFragment{Name: call.Function.Name, Arguments: call.Function.Arguments}, nil
	}
	return types.TextFragment{Text: delta.Content}, nil
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}
