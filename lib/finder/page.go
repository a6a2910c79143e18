package finder

import (
	"context"
	"strings"

	"htmlkit/lib/dom"
	"htmlkit/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("htmlkit/lib/finder")

// ByID returns the element with the given id, which must be accepted by
// kind.
func ByID(ctx context.Context, page *dom.Page, id string, kind dom.Kind) (dom.Element, error) {
	ctx, span := tracer.Start(ctx, "ByID")
	defer span.End()
	span.SetAttributes(attribute.String("id", id), attribute.Stringer("kind", kind))

	element, ok := page.ElementByID(id)
	if !ok {
		err := pageFailure(
			ctx, page, ErrNotFound,
			"could not find element with id '%s' on page %s",
			id, page.Location(),
		)
		return dom.Element{}, recordFailure(span, err)
	}
	if !kind.Accepts(element.Kind()) {
		err := pageFailure(
			ctx, page, ErrWrongElement,
			"expected a field with id '%s' and kind %s, but had an element of kind %s on page: %s",
			id, kind, element.Kind(), page.Location(),
		)
		return dom.Element{}, recordFailure(span, wrongKind(err, kind, element.Kind()))
	}
	return element, nil
}

// ByName returns the first element in document order with the given name.
// Duplicate names are not detected here, unlike SoleByName.
func ByName(ctx context.Context, page *dom.Page, name string, kind dom.Kind) (dom.Element, error) {
	ctx, span := tracer.Start(ctx, "ByName")
	defer span.End()
	span.SetAttributes(attribute.String("name", name), attribute.Stringer("kind", kind))

	element, ok := page.ElementByName(name)
	if !ok {
		err := pageFailure(
			ctx, page, ErrNotFound,
			"could not find element with name '%s' on page %s",
			name, page.Location(),
		)
		return dom.Element{}, recordFailure(span, err)
	}
	if !kind.Accepts(element.Kind()) {
		err := pageFailure(
			ctx, page, ErrWrongElement,
			"expected a field with name '%s' and kind %s, but had an element of kind %s on page: %s",
			name, kind, element.Kind(), page.Location(),
		)
		return dom.Element{}, recordFailure(span, wrongKind(err, kind, element.Kind()))
	}
	return element, nil
}

// allByTag collects the `tag` elements matching `match` in document order.
// every match must be accepted by kind, describe renders the lookup for the
// error message of the first one that is not.
func allByTag(
	ctx context.Context,
	page *dom.Page,
	tag string,
	kind dom.Kind,
	match func(dom.Element) bool,
	describe func() string,
) ([]dom.Element, error) {
	out := []dom.Element{}
	for _, element := range page.ElementsByTagName(tag) {
		if !match(element) {
			continue
		}
		if !kind.Accepts(element.Kind()) {
			err := pageFailure(
				ctx, page, ErrWrongElement,
				"expected a field with %s and kind %s, but had an element of kind %s on page: %s",
				describe(), kind, element.Kind(), page.Location(),
			)
			return nil, wrongKind(err, kind, element.Kind())
		}
		out = append(out, element)
	}
	return out, nil
}

// AllByAttribute returns every `tag` element whose attribute equals value.
// No match is an empty result, not an error.
func AllByAttribute(ctx context.Context, page *dom.Page, tag, attr, value string, kind dom.Kind) ([]dom.Element, error) {
	ctx, span := tracer.Start(ctx, "AllByAttribute")
	defer span.End()
	span.SetAttributes(
		attribute.String("tag", tag),
		attribute.String("attribute", attr),
		attribute.String("value", value),
	)

	out, err := allByTag(
		ctx, page, tag, kind,
		func(e dom.Element) bool {
			return e.Attr(attr) == value
		},
		func() string {
			return "tag '" + tag + "', attribute '" + attr + "', value '" + value + "'"
		},
	)
	if err != nil {
		return nil, recordFailure(span, err)
	}
	span.SetAttributes(attribute.Int("matches", len(out)))
	return out, nil
}

// AllByAttributeContains returns every `tag` element whose attribute
// contains substring.
func AllByAttributeContains(ctx context.Context, page *dom.Page, tag, attr, substring string, kind dom.Kind) ([]dom.Element, error) {
	ctx, span := tracer.Start(ctx, "AllByAttributeContains")
	defer span.End()
	span.SetAttributes(
		attribute.String("tag", tag),
		attribute.String("attribute", attr),
		attribute.String("substring", substring),
	)

	out, err := allByTag(
		ctx, page, tag, kind,
		func(e dom.Element) bool {
			return strings.Contains(e.Attr(attr), substring)
		},
		func() string {
			return "tag '" + tag + "', attribute '" + attr + "', which contains value '" + substring + "'"
		},
	)
	if err != nil {
		return nil, recordFailure(span, err)
	}
	span.SetAttributes(attribute.Int("matches", len(out)))
	return out, nil
}

// AllByText returns every `tag` element whose text content equals text.
func AllByText(ctx context.Context, page *dom.Page, tag, text string, kind dom.Kind) ([]dom.Element, error) {
	ctx, span := tracer.Start(ctx, "AllByText")
	defer span.End()
	span.SetAttributes(attribute.String("tag", tag), attribute.String("text", text))

	out, err := allByTag(
		ctx, page, tag, kind,
		func(e dom.Element) bool {
			return e.Text() == text
		},
		func() string {
			return "tag '" + tag + "', which contains text '" + text + "'"
		},
	)
	if err != nil {
		return nil, recordFailure(span, err)
	}
	span.SetAttributes(attribute.Int("matches", len(out)))
	return out, nil
}

// FormByName returns the first form with the given name.
func FormByName(ctx context.Context, page *dom.Page, name string) (dom.Element, error) {
	ctx, span := tracer.Start(ctx, "FormByName")
	defer span.End()
	span.SetAttributes(attribute.String("name", name))

	form, ok := page.FormByName(name)
	if !ok {
		err := pageFailure(
			ctx, page, ErrNotFound,
			"could not find form with name '%s' on page %s",
			name, page.Location(),
		)
		return dom.Element{}, recordFailure(span, err)
	}
	return form, nil
}

// FormByAction returns the first form whose action attribute equals
// action. Later forms with the same action are ignored.
func FormByAction(ctx context.Context, page *dom.Page, action string) (dom.Element, error) {
	ctx, span := tracer.Start(ctx, "FormByAction")
	defer span.End()
	span.SetAttributes(attribute.String("action", action))

	for _, form := range page.Forms() {
		if form.Attr("action") == action {
			return form, nil
		}
	}

	err := pageFailure(
		ctx, page, ErrNotFound,
		"could not find form with action '%s' on page %s",
		action, page.Location(),
	)
	return dom.Element{}, recordFailure(span, err)
}
