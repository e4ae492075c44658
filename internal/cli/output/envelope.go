// Package output renders --json results in a stable envelope.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/regenrek/termflow/internal/atomicfile"
	"github.com/regenrek/termflow/internal/pipeline"
	"github.com/regenrek/termflow/internal/session"
)

const SchemaVersion = "1.0.0"

// Envelope wraps every --json document. Exactly one of Data and Error is set.
type Envelope struct {
	Ok    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
	Meta  Meta       `json:"meta"`
}

type Meta struct {
	Command       string    `json:"command"`
	SchemaVersion string    `json:"schema_version"`
	Version       string    `json:"version,omitempty"`
	DurationMS    float64   `json:"duration_ms,omitempty"`
	TS            time.Time `json:"ts"`
}

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func NewMeta(command, version string) Meta {
	return Meta{
		Command:       command,
		SchemaVersion: SchemaVersion,
		Version:       version,
		TS:            time.Now().UTC(),
	}
}

func WithDuration(meta Meta, start time.Time) Meta {
	meta.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	return meta
}

func WriteSuccess(w io.Writer, meta Meta, data any) error {
	return encode(w, Envelope{Ok: true, Data: data, Meta: meta})
}

func WriteError(w io.Writer, meta Meta, code, message string, details map[string]any) error {
	if code == "" {
		code = "unknown"
	}
	if message == "" {
		message = "unknown error"
	}
	return encode(w, Envelope{Error: &ErrorBody{Code: code, Message: message, Details: details}, Meta: meta})
}

// ErrorCode classifies err into the stable code reported in error envelopes.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pipeline.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, atomicfile.ErrExists):
		return "already_exists"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, session.ErrClosed):
		return "session_closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "command_failed"
	}
}

func encode(w io.Writer, env Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
