package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Writer emits newline-delimited JSON envelopes.
type Writer struct {
	enc *json.Encoder
}

// NewWriter wraps w for envelope output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write validates and emits one envelope.
func (w *Writer) Write(env Envelope) error {
	env.Normalize()
	if err := env.Validate(); err != nil {
		return err
	}
	if err := w.enc.Encode(env); err != nil {
		return fmt.Errorf("failed to write %s message: %w", env.Kind, err)
	}
	return nil
}

// Reader decodes a stream of newline-delimited JSON envelopes, preserving
// arrival order.
type Reader struct {
	dec *json.Decoder
}

// NewReader wraps r for envelope input.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(r)}
}

// Read returns the next envelope. io.EOF signals a clean end of stream.
func (r *Reader) Read() (Envelope, error) {
	var env Envelope
	if err := r.dec.Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return Envelope{}, io.EOF
		}
		return Envelope{}, fmt.Errorf("failed to read message: %w", err)
	}
	env.Normalize()
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
