// Package audit writes one JSON line per state changing request.
package audit

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.pilab.hu/stats/domain"
)

const (
	ActionToken  = "token"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is a single audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"` // token subject or submitted username
	Namespace string    `json:"namespace,omitempty"`
	Target    string    `json:"target,omitempty"` // record id
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Logger is safe for concurrent use. A nil *Logger discards events.
type Logger struct {
	out zerolog.Logger
	now func() time.Time
}

// New writes audit events to w.
func New(w io.Writer) *Logger {
	return &Logger{
		out: zerolog.New(w).With().Str("log", "audit").Logger(),
		now: time.Now,
	}
}

// Log records action on target. The subject is taken from ctx when the
// request was authenticated.
func (l *Logger) Log(ctx context.Context, action, namespace, target string, err error) {
	subject, _ := domain.SubjectFromContext(ctx)
	l.Write(Event{
		Action:    action,
		Subject:   subject,
		Namespace: namespace,
		Target:    target,
		Success:   err == nil,
		Error:     errString(err),
	})
}

// Write emits event, stamping it when Timestamp is zero.
func (l *Logger) Write(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	e := l.out.Log().
		Time("timestamp", event.Timestamp).
		Str("action", event.Action).
		Bool("success", event.Success)
	if event.Subject != "" {
		e = e.Str("subject", event.Subject)
	}
	if event.Namespace != "" {
		e = e.Str("namespace", event.Namespace)
	}
	if event.Target != "" {
		e = e.Str("target", event.Target)
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	e.Send()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
