package domain

import "context"

type contextKey string

// SubjectContextKey is the key used to store the authenticated subject in context.
const SubjectContextKey contextKey = "auth_subject"

// ContextWithSubject returns a copy of ctx carrying the token subject.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectContextKey, subject)
}

// SubjectFromContext retrieves the subject set by the authentication middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectContextKey).(string)
	return subject, ok && subject != ""
}
