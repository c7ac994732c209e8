package types

import "strings"

// DOMElement is one node of the task area's DOM as reported by the page.
type DOMElement struct {
	Ref      int           `json:"ref"`
	Tag      string        `json:"tag"`
	Text     string        `json:"text,omitempty"`
	Value    string        `json:"value,omitempty"`
	ID       string        `json:"id,omitempty"`
	Classes  string        `json:"classes,omitempty"`
	Left     float64       `json:"left"`
	Top      float64       `json:"top"`
	Width    float64       `json:"width"`
	Height   float64       `json:"height"`
	Focused  bool          `json:"focused,omitempty"`
	Tampered bool          `json:"tampered,omitempty"`
	Children []*DOMElement `json:"children,omitempty"`
}

// Walk visits e and every descendant in document order.
// Returning false from fn skips the element's children.
func (e *DOMElement) Walk(fn func(*DOMElement) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Leaves returns the elements without children, which are the usual click targets.
func (e *DOMElement) Leaves() []*DOMElement {
	var leaves []*DOMElement
	e.Walk(func(el *DOMElement) bool {
		if len(el.Children) == 0 {
			leaves = append(leaves, el)
		}
		return true
	})
	return leaves
}

// Visualize renders the tree as an indented outline, one element per line.
func (e *DOMElement) Visualize() string {
	var b strings.Builder
	e.visualize(&b, 0)
	return b.String()
}

func (e *DOMElement) visualize(b *strings.Builder, depth int) {
	if e == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("[")
	b.WriteString(e.Tag)
	if e.ID != "" {
		b.WriteString(" #" + e.ID)
	}
	b.WriteString("]")
	if e.Text != "" {
		b.WriteString(" " + e.Text)
	}
	b.WriteString("\n")
	for _, c := range e.Children {
		c.visualize(b, depth+1)
	}
}

// State is the observation an instance produces after reset or step.
type State struct {
	// Utterance is the natural language task instruction.
	Utterance string `json:"utterance"`

	// Fields are the structured key/value pairs extracted from the utterance.
	Fields map[string]string `json:"fields,omitempty"`

	// DOM is the root of the task area.
	DOM *DOMElement `json:"dom,omitempty"`

	// Text is the visible text of the task area with markup stripped.
	Text string `json:"text,omitempty"`

	// Screenshot holds a PNG of the page when screenshot recording is on.
	Screenshot []byte `json:"-"`
}

// Metadata is the raw per-step result reported by the task page.
type Metadata struct {
	RawReward float64 `json:"raw_reward"`
	EnvReward float64 `json:"env_reward"`
	Done      bool    `json:"done"`
	Reason    string  `json:"reason,omitempty"`
}

// Map flattens the metadata into a per-instance info entry.
func (m Metadata) Map() map[string]any {
	info := map[string]any{
		"raw_reward": m.RawReward,
		"env_reward": m.EnvReward,
		"done":       m.Done,
	}
	if m.Reason != "" {
		info["reason"] = m.Reason
	}
	return info
}
