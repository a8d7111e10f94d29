// Package transcriber talks to the speech recognition engine.
package transcriber

import "context"

// Result is the output of a transcription call.
type Result struct {
	Text string
	// Language is the engine's language code, e.g. "hi" or "en".
	Language string
}

// Gateway is the speech recognition engine as seen by the note lifecycle.
type Gateway interface {
	// Transcribe returns the text in the source language and the detected language code.
	Transcribe(ctx context.Context, audio []byte) (*Result, error)
	// Translate returns an English rendition of the speech.
	Translate(ctx context.Context, audio []byte) (*Result, error)
	// Model identifies the engine model for logs.
	Model() string
}
