// Package live defines the Provider interface for realtime
// speech-to-speech backends.
//
// A live provider wraps a voice AI service that accepts raw microphone
// audio and returns synthesised speech in a single stateful session.
// The central abstraction is [SessionHandle]: a bidirectional,
// multiplexed stream carrying outbound audio chunks, inbound audio
// deltas, and tool-call traffic concurrently. Sessions are long-lived
// (seconds to minutes) and are never retried by the handle itself — a
// dead session must be replaced by the caller.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"encoding/json"
	"time"
)

// ToolDefinition describes one function the model may invoke during the
// session. Declarations are sent once, in the session setup message.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains when the model should call the tool.
	Description string

	// Parameters is the JSON Schema for the tool's arguments.
	Parameters map[string]any
}

// ToolCall is a single function invocation issued by the model.
type ToolCall struct {
	// ID correlates the call with its result. Some backends issue
	// batches of calls in one message; each element carries its own ID.
	ID string

	// Name is the requested tool name. It may be outside the declared
	// set; handlers must still produce a result.
	Name string

	// Args is the raw JSON arguments object.
	Args json.RawMessage
}

// ToolCallHandler is invoked by the session for every tool call the
// model issues. The returned string is sent back as the call's result,
// correlated by the call's ID. A handler must always return — the
// remote protocol requires exactly one response per call.
//
// The handler runs on the session's receive goroutine and must not
// block or call back into blocking session methods.
type ToolCallHandler func(call ToolCall) string

// SessionConfig is the configuration sent once when a session opens.
// Response modality is always audio.
type SessionConfig struct {
	// Instructions is the system-level prompt defining the assistant's
	// persona and behaviour.
	Instructions string

	// Voice selects the synthesised voice identity (backend-specific name).
	Voice string

	// Tools is the set of tool declarations offered to the model.
	Tools []ToolDefinition
}

// Capabilities describes static properties of a live backend. The
// values are constant for the lifetime of the Provider instance.
type Capabilities struct {
	// MaxSessionDuration is the backend's hard session lifetime limit.
	// Zero means no documented limit.
	MaxSessionDuration time.Duration

	// SupportsInterrupt reports whether [SessionHandle.Interrupt] works
	// mid-response.
	SupportsInterrupt bool

	// Voices lists the voice names accepted in [SessionConfig.Voice].
	Voices []string
}

// SessionHandle represents an open live session.
//
// The session is the hot path of the voice loop — every method must
// return quickly. Inbound audio is channel-based so that the receive
// loop never blocks the caller. Callers must call Close when done.
type SessionHandle interface {
	// SendAudio delivers one raw PCM16 chunk (16 kHz mono) to the
	// model. The send is streaming: no acknowledgment is awaited before
	// the next chunk. Returns an error if the session is closed or the
	// transport rejects the write.
	SendAudio(chunk []byte) error

	// Audio returns a read-only channel emitting raw PCM16 chunks
	// (24 kHz mono) of synthesised speech, in arrival order. The
	// channel is closed when the session ends; check [SessionHandle.Err]
	// afterwards to distinguish a clean close from a failure.
	Audio() <-chan []byte

	// Err returns the error that terminated the session, or nil if it
	// ended cleanly or is still open.
	Err() error

	// OnToolCall registers handler for model tool invocations. One
	// handler at a time; nil clears it. Calls arriving with no handler
	// registered are still answered with a generic acknowledgment.
	OnToolCall(handler ToolCallHandler)

	// Interrupt asks the backend to stop generating the current
	// response and discard buffered audio. Backends without support
	// return an error; the caller still flushes local playback.
	Interrupt() error

	// Close terminates the session and closes the Audio channel.
	// Idempotent; always returns nil after the first call.
	Close() error
}

// Provider is the abstraction over any live speech backend.
type Provider interface {
	// Connect establishes a new session with the given configuration.
	// The returned handle is ready to accept audio immediately. The
	// caller owns the handle and must Close it.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the backend.
	Capabilities() Capabilities
}
