package types

import "context"

// Fragment is one piece of an agent's streamed response. The set of
// implementations is closed; consumers switch over all of them.
type Fragment interface {
	fragment()
}

// TextFragment carries a chunk of assistant text.
type TextFragment struct {
	Text string
}

// ToolCallFragment reports that the agent invoked a tool.
type ToolCallFragment struct {
	Name      string
	Arguments string
}

// ToolResultFragment carries the output a tool returned to the agent.
type ToolResultFragment struct {
	Name    string
	Content string
}

// ErrorFragment is an in-band failure emitted by the agent runtime.
type ErrorFragment struct {
	Err error
}

func (TextFragment) fragment()       {}
func (ToolCallFragment) fragment()   {}
func (ToolResultFragment) fragment() {}
func (ErrorFragment) fragment()      {}

// Stream is a finite, non-restartable sequence of response fragments.
// Recv returns io.EOF once the stream is exhausted. A context error
// (timeout, cancellation) may surface from Recv at any point.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}

// Invoker starts an agent run for a prompt and hands back its response
// stream. Implementations are opaque to the scheduler.
type Invoker interface {
	Invoke(ctx context.Context, agentID string, prompt string) (Stream, error)
}
