package types

import "fmt"

// ActionType defines the kind of interaction an action performs on a task page.
type ActionType string

const (
	ActionTypeClickElement ActionType = "click_element"  // ActionTypeClickElement clicks the element with a given ref.
	ActionTypeClickCoords  ActionType = "click_coords"   // ActionTypeClickCoords clicks at page coordinates.
	ActionTypeType         ActionType = "type"           // ActionTypeType types text into the focused element.
	ActionTypeFocusAndType ActionType = "focus_and_type" // ActionTypeFocusAndType clicks an element, then types text.
	ActionTypeKey          ActionType = "key"            // ActionTypeKey presses a single key (e.g. "Enter").
)

// Action is a single interaction dispatched to one instance.
// A nil *Action is the no-op sentinel: the instance only observes.
type Action struct {
	// Type selects which of the remaining fields are used.
	Type ActionType

	// Ref identifies a DOM element by the ref reported in DOMElement.Ref.
	// Used by ActionTypeClickElement and ActionTypeFocusAndType.
	Ref int

	// Left and Top are viewport coordinates in CSS pixels, measured from
	// the top-left corner of the page.
	// Used by ActionTypeClickCoords.
	Left float64
	Top  float64

	// Text is typed by ActionTypeType and ActionTypeFocusAndType.
	Text string

	// Key is the key name for ActionTypeKey.
	Key string
}

// NewClickElementAction creates an action that clicks the element with the given ref.
func NewClickElementAction(ref int) *Action {
	return &Action{Type: ActionTypeClickElement, Ref: ref}
}

// NewClickCoordsAction creates an action that clicks at viewport
// coordinates (left, top).
func NewClickCoordsAction(left, top float64) *Action {
	return &Action{Type: ActionTypeClickCoords, Left: left, Top: top}
}

// NewTypeAction creates an action that types text into the focused element.
func NewTypeAction(text string) *Action {
	return &Action{Type: ActionTypeType, Text: text}
}

// NewFocusAndTypeAction creates an action that focuses an element and types text.
func NewFocusAndTypeAction(ref int, text string) *Action {
	return &Action{Type: ActionTypeFocusAndType, Ref: ref, Text: text}
}

// NewKeyAction creates an action that presses a key.
func NewKeyAction(key string) *Action {
	return &Action{Type: ActionTypeKey, Key: key}
}

// Validate reports whether the action carries the fields its type needs.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionTypeClickElement, ActionTypeClickCoords:
		return nil
	case ActionTypeType, ActionTypeFocusAndType:
		if a.Text == "" {
			return fmt.Errorf("%s action requires text", a.Type)
		}
		return nil
	case ActionTypeKey:
		if a.Key == "" {
			return fmt.Errorf("key action requires a key")
		}
		return nil
	default:
		return fmt.Errorf("unknown action type: %q", a.Type)
	}
}

func (a *Action) String() string {
	if a == nil {
		return "noop"
	}
	switch a.Type {
	case ActionTypeClickElement:
		return fmt.Sprintf("click(ref=%d)", a.Ref)
	case ActionTypeClickCoords:
		return fmt.Sprintf("click(%.1f, %.1f)", a.Left, a.Top)
	case ActionTypeType:
		return fmt.Sprintf("type(%q)", a.Text)
	case ActionTypeFocusAndType:
		return fmt.Sprintf("focus_and_type(ref=%d, %q)", a.Ref, a.Text)
	case ActionTypeKey:
		return fmt.Sprintf("key(%s)", a.Key)
	}
	return string(a.Type)
}
