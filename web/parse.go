package web

import (
	"io"

	"golang.org/x/net/html"
)

// ForEachNode applies a function to the given node and each of its
// descendants.
func ForEachNode(node *html.Node, fn func(n *html.Node) error) error {
	var iter func(n *html.Node) error
	iter = func(n *html.Node) error {
		err := fn(n)
		if err != nil {
			return err
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			err := iter(c)
			if err != nil {
				return err
			}
		}

		return nil
	}

	return iter(node)
}

// NodesWithDataVal returns a slice of all descendant element nodes whose
// "data" field has the given value.
func NodesWithDataVal(node *html.Node, dataName string) []*html.Node {
	var nodes []*html.Node

	ForEachNode(node, func(n *html.Node) error {
		if n.Type == html.ElementNode && n.Data == dataName {
			nodes = append(nodes, n)
		}
		return nil
	})

	return nodes
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// EmbeddedImageURLs returns the src of every image in the given html
// document, in document order.
func EmbeddedImageURLs(doc *html.Node) []string {
	var urls []string
	for _, n := range NodesWithDataVal(doc, "img") {
		if src := attrVal(n, "src"); src != "" {
			urls = append(urls, src)
		}
	}

	return urls
}

// ParseGallery returns the images listed by a gallery page.
func ParseGallery(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return EmbeddedImageURLs(doc), nil
}
