package instance

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// visibleText returns the whitespace-normalized text inside the element
// with id rootID, or of the whole body if no such element exists.
// Script, style and other non-rendered elements are skipped.
func visibleText(rawHTML, rootID string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	root := findByID(doc, rootID)
	if root == nil {
		root = doc
	}

	var words []string
	collectText(root, &words)
	return strings.Join(words, " "), nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, words *[]string) {
	if n.Type == html.CommentNode {
		return
	}
	if n.Type == html.ElementNode && isSkippedElement(strings.ToLower(n.Data)) {
		return
	}
	if n.Type == html.TextNode {
		*words = append(*words, strings.Fields(n.Data)...)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, words)
	}
}

// isSkippedElement returns true for elements whose text is never rendered.
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "head":
		return true
	}
	return false
}
