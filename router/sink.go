package router

import "runtime"

// Source describes the call site that produced a message. It is captured
// with runtime call-site reflection at the emission entry points.
type Source struct {
	// Function is the fully qualified name of the emitting function.
	Function string `json:"function,omitempty"`

	// File is the source file of the emission call.
	File string `json:"file,omitempty"`

	// Line is the line number of the emission call.
	Line int `json:"line,omitempty"`
}

// Message is the payload forwarded to a sink once a message has passed the
// router's gate. Formatting and I/O are entirely the sink's concern; the
// router never inspects the payload after construction.
type Message struct {
	// Level is the message severity that passed the gate.
	Level Level `json:"level"`

	// Text is the message body. For lazy emissions it is the producer's
	// result.
	Text string `json:"text"`

	// Path is the component path the message was emitted against.
	Path Path `json:"path"`

	// Context identifies the calling context bound to the emitting router,
	// if one was configured. Empty otherwise.
	Context string `json:"context,omitempty"`

	// Source is the captured call site, when available.
	Source *Source `json:"source,omitempty"`

	// Attrs carries caller-supplied key-value metadata, alternating keys
	// and values in the log/slog convention.
	Attrs []any `json:"-"`
}

// Sink consumes messages that passed the router's gate.
//
// The router's own gate check is independent of and precedes any
// sink-local filtering: ShouldAccept is consulted after the gate passes,
// and only when both agree is Handle invoked. Sinks own any blocking I/O
// and their own concurrency discipline; errors returned from Handle
// propagate to the emitting caller untouched.
type Sink interface {
	// MinLevel returns the sink's own minimum accepted severity.
	MinLevel() Level

	// ShouldAccept is a sink-local filter applied beyond the router's
	// gate. Returning false suppresses the Handle call for this message.
	ShouldAccept(level Level, path Path, contextID string) bool

	// Handle performs the actual formatting and output of an accepted
	// message.
	Handle(msg Message) error
}

// captureSource resolves the emission call site skip frames above the
// caller of captureSource itself. It returns nil when the runtime cannot
// resolve the frame.
func captureSource(skip int) *Source {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return nil
	}
	src := &Source{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		src.Function = fn.Name()
	}
	return src
}
