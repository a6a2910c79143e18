package finder

import (
	"context"

	"htmlkit/lib/dom"

	"go.opentelemetry.io/otel/attribute"
)

// findSole walks the descendants of root with an explicit stack, children
// are pushed in document order and popped last first. It stops as soon as
// a second match turns up, so count is 0, 1 or 2.
func findSole(root dom.Element, match func(dom.Element) bool) (found dom.Element, count int) {
	stack := root.Children()
	for len(stack) > 0 {
		element := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if match(element) {
			if count > 0 {
				return found, 2
			}
			found = element
			count = 1
		}
		stack = append(stack, element.Children()...)
	}
	return found, count
}

// SoleByType returns the only descendant of root accepted by kind.
func SoleByType(ctx context.Context, root dom.Element, kind dom.Kind) (dom.Element, error) {
	ctx, span := tracer.Start(ctx, "SoleByType")
	defer span.End()
	span.SetAttributes(attribute.Stringer("kind", kind))

	found, count := findSole(root, func(e dom.Element) bool {
		return kind.Accepts(e.Kind())
	})
	switch count {
	case 0:
		err := subtreeFailure(
			ctx, root, ErrNotFound,
			"could not find element of kind %s in %s",
			kind, describe(root),
		)
		return dom.Element{}, recordFailure(span, err)
	case 1:
		return found, nil
	default:
		err := subtreeFailure(
			ctx, root, ErrAmbiguous,
			"did find more than one element of kind %s in %s",
			kind, describe(root),
		)
		return dom.Element{}, recordFailure(span, err)
	}
}

// SoleByName returns the only descendant of root with the given name.
// Uniqueness is judged by name alone, kind is checked afterwards.
func SoleByName(ctx context.Context, root dom.Element, name string, kind dom.Kind) (dom.Element, error) {
	ctx, span := tracer.Start(ctx, "SoleByName")
	defer span.End()
	span.SetAttributes(attribute.String("name", name), attribute.Stringer("kind", kind))

	found, count := findSole(root, func(e dom.Element) bool {
		return e.Attr("name") == name
	})
	switch count {
	case 0:
		err := subtreeFailure(
			ctx, root, ErrNotFound,
			"could not find element with name %s of kind %s in %s",
			name, kind, describe(root),
		)
		return dom.Element{}, recordFailure(span, err)
	case 1:
	default:
		err := subtreeFailure(
			ctx, root, ErrAmbiguous,
			"did find more than one element with name %s and kind %s in %s",
			name, kind, describe(root),
		)
		return dom.Element{}, recordFailure(span, err)
	}

	if !kind.Accepts(found.Kind()) {
		err := subtreeFailure(
			ctx, root, ErrWrongElement,
			"expected a field with name '%s' and kind %s, but had an element of kind %s",
			name, kind, found.Kind(),
		)
		return dom.Element{}, recordFailure(span, wrongKind(err, kind, found.Kind()))
	}
	return found, nil
}

// SoleByNameAndValue is SoleByName for controls that share a name and are
// told apart by their value, like radio buttons.
func SoleByNameAndValue(ctx context.Context, root dom.Element, name, value string, kind dom.Kind) (dom.Element, error) {
	ctx, span := tracer.Start(ctx, "SoleByNameAndValue")
	defer span.End()
	span.SetAttributes(
		attribute.String("name", name),
		attribute.String("value", value),
		attribute.Stringer("kind", kind),
	)

	found, count := findSole(root, func(e dom.Element) bool {
		return e.Attr("name") == name && e.Attr("value") == value
	})
	switch count {
	case 0:
		err := subtreeFailure(
			ctx, root, ErrNotFound,
			"could not find element with name %s and value %s of kind %s in %s",
			name, value, kind, describe(root),
		)
		return dom.Element{}, recordFailure(span, err)
	case 1:
	default:
		err := subtreeFailure(
			ctx, root, ErrAmbiguous,
			"did find more than one element with name %s, value %s and kind %s in %s",
			name, value, kind, describe(root),
		)
		return dom.Element{}, recordFailure(span, err)
	}

	if !kind.Accepts(found.Kind()) {
		err := subtreeFailure(
			ctx, root, ErrWrongElement,
			"expected a field with name '%s', value '%s' and kind %s, but had an element of kind %s",
			name, value, kind, found.Kind(),
		)
		return dom.Element{}, recordFailure(span, wrongKind(err, kind, found.Kind()))
	}
	return found, nil
}

// FormElementByType looks up the form called formName and returns its only
// control accepted by kind.
func FormElementByType(ctx context.Context, page *dom.Page, formName string, kind dom.Kind) (dom.Element, error) {
	form, err := FormByName(ctx, page, formName)
	if err != nil {
		return dom.Element{}, err
	}
	return SoleByType(ctx, form, kind)
}
