package web

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GalleryFilename is the name of the page written next to downloaded images.
const GalleryFilename = "index.html"

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// BuildGallery constructs an html web page displaying images with the given
// filenames. Each image links to itself.
func BuildGallery(title string, filenames []string) string {
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"}))
	t := element(atom.Title)
	t.AppendChild(text(title))
	head.AppendChild(t)

	body := element(atom.Body)
	for _, f := range filenames {
		a := element(atom.A, html.Attribute{Key: "href", Val: f})
		a.AppendChild(element(atom.Img,
			html.Attribute{Key: "src", Val: f},
			html.Attribute{Key: "alt", Val: f},
			html.Attribute{Key: "style", Val: "max-width:100%"},
		))
		body.AppendChild(a)
		body.AppendChild(text("\n"))
	}

	root := element(atom.Html)
	root.AppendChild(head)
	root.AppendChild(body)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(root)

	var buf bytes.Buffer
	// Rendering a tree built in memory only fails on writer errors.
	html.Render(&buf, doc)
	buf.WriteString("\n")

	return buf.String()
}

// WriteGallery writes the gallery page of an image folder. Images listed by
// an existing page are kept, so repeated runs only add entries. filenames are
// relative to dir.
func WriteGallery(dir, title string, filenames []string) error {
	path := filepath.Join(dir, GalleryFilename)

	var all []string
	seen := map[string]struct{}{}
	add := func(fs []string) {
		for _, f := range fs {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			all = append(all, f)
		}
	}

	f, err := os.Open(path)
	switch {
	case err == nil:
		existing, perr := ParseGallery(f)
		f.Close()
		if perr != nil {
			log.WithError(perr).Warnf("rewriting unreadable gallery: %s", path)
		}
		add(existing)
	case !errors.Is(err, os.ErrNotExist):
		return err
	}

	add(filenames)
	if len(all) == 0 {
		return nil
	}

	log.Debugf("writing gallery: %s (%d images)", path, len(all))
	return os.WriteFile(path, []byte(BuildGallery(title, all)), 0644)
}
