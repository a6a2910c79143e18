package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"htmlkit/lib/dom"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotFound     = errors.New("no matching element")
	ErrAmbiguous    = errors.New("more than one matching element")
	ErrWrongElement = errors.New("matching element has the wrong kind")
)

// LookupError describes a failed lookup. Reason is one of ErrNotFound,
// ErrAmbiguous or ErrWrongElement, so errors.Is works against those.
type LookupError struct {
	Reason  error
	Message string
	// Context is the serialized page or form the lookup ran against.
	Context string

	// only set when Reason is ErrWrongElement
	Expected dom.Kind
	Actual   dom.Kind
}

func (e *LookupError) Error() string {
	return e.Message
}

func (e *LookupError) Unwrap() error {
	return e.Reason
}

func pageFailure(ctx context.Context, page *dom.Page, reason error, format string, args ...any) *LookupError {
	contents := page.HTML()
	slog.WarnContext(ctx, "page contents", "url", page.Location(), "html", contents)
	return &LookupError{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
		Context: contents,
	}
}

func subtreeFailure(ctx context.Context, root dom.Element, reason error, format string, args ...any) *LookupError {
	contents := root.HTML()
	slog.WarnContext(ctx, "form contents", "root", describe(root), "html", contents)
	return &LookupError{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
		Context: contents,
	}
}

func wrongKind(err *LookupError, expected, actual dom.Kind) *LookupError {
	err.Expected = expected
	err.Actual = actual
	return err
}

func describe(root dom.Element) string {
	if root.Kind() == dom.KindForm {
		return fmt.Sprintf("form '%s'", root.Attr("name"))
	}
	return fmt.Sprintf("<%s> element", root.Tag())
}

func recordFailure(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
