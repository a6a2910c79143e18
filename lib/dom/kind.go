package dom

import (
	"fmt"
	"strings"
)

// Kind is the closed set of element kinds a lookup can ask for.
type Kind int

const (
	// KindAny accepts every element.
	KindAny Kind = iota
	// KindInput accepts every <input>, whatever its type.
	KindInput

	KindGeneric
	KindAnchor
	KindImage
	KindForm
	KindBody
	KindDiv
	KindSpan
	KindParagraph
	KindTable
	KindButton
	KindSelect
	KindOption
	KindTextArea

	KindTextInput
	KindPasswordInput
	KindImageInput
	KindRadioInput
	KindCheckboxInput
	KindSubmitInput
	KindResetInput
	KindHiddenInput
	KindButtonInput
	KindFileInput
)

var kindNames = map[Kind]string{
	KindAny:           "any",
	KindInput:         "input",
	KindGeneric:       "generic",
	KindAnchor:        "anchor",
	KindImage:         "image",
	KindForm:          "form",
	KindBody:          "body",
	KindDiv:           "div",
	KindSpan:          "span",
	KindParagraph:     "paragraph",
	KindTable:         "table",
	KindButton:        "button",
	KindSelect:        "select",
	KindOption:        "option",
	KindTextArea:      "textarea",
	KindTextInput:     "text input",
	KindPasswordInput: "password input",
	KindImageInput:    "image input",
	KindRadioInput:    "radio input",
	KindCheckboxInput: "checkbox input",
	KindSubmitInput:   "submit input",
	KindResetInput:    "reset input",
	KindHiddenInput:   "hidden input",
	KindButtonInput:   "button input",
	KindFileInput:     "file input",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return name
}

// IsInput reports whether k is one of the concrete <input> kinds.
func (k Kind) IsInput() bool {
	return k >= KindTextInput && k <= KindFileInput
}

// Accepts is the capability check used by every lookup: an exact match,
// or one of the abstract kinds covering actual.
func (k Kind) Accepts(actual Kind) bool {
	switch k {
	case KindAny:
		return true
	case KindInput:
		return actual.IsInput()
	}
	return k == actual
}

// ParseKind maps a kind name (as printed by String, spaces or dashes
// interchangeable) back to its Kind.
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.ReplaceAll(normalized, "_", " ")
	for k, n := range kindNames {
		if n == normalized {
			return k, nil
		}
	}
	return KindAny, fmt.Errorf("unknown element kind '%s'", name)
}

var tagKinds = map[string]Kind{
	"a":        KindAnchor,
	"img":      KindImage,
	"form":     KindForm,
	"body":     KindBody,
	"div":      KindDiv,
	"span":     KindSpan,
	"p":        KindParagraph,
	"table":    KindTable,
	"button":   KindButton,
	"select":   KindSelect,
	"option":   KindOption,
	"textarea": KindTextArea,
}

var inputKinds = map[string]Kind{
	"text":     KindTextInput,
	"password": KindPasswordInput,
	"image":    KindImageInput,
	"radio":    KindRadioInput,
	"checkbox": KindCheckboxInput,
	"submit":   KindSubmitInput,
	"reset":    KindResetInput,
	"hidden":   KindHiddenInput,
	"button":   KindButtonInput,
	"file":     KindFileInput,
}

// kindOf derives the kind from the tag name and, for inputs, the type
// attribute. Missing or unrecognized input types are text inputs, the same
// fallback browsers apply.
func kindOf(tag, inputType string) Kind {
	if tag == "input" {
		k, ok := inputKinds[strings.ToLower(strings.TrimSpace(inputType))]
		if !ok {
			return KindTextInput
		}
		return k
	}
	k, ok := tagKinds[tag]
	if !ok {
		return KindGeneric
	}
	return k
}
