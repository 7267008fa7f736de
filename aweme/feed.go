package aweme

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Feed is the content of one feed file.
type Feed struct {
	Filename string
	Records  []Record
	Skipped  int // Awemes dropped for lacking an id or description.
}

// ReadPages unmarshals a feed file from disk: a JSON array of API response
// pages.
func ReadPages(filename string) ([]Message, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return DecodePages(b)
}

// DecodePages decodes the pages of a feed file.
func DecodePages(b []byte) ([]Message, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("not a feed file: %w", err)
	}

	var pages []Message
	for _, a := range raw {
		// Non-object pages carry nothing for us.
		if m, ok := a.(map[string]any); ok {
			pages = append(pages, Message(m))
		}
	}

	return pages, nil
}

// ReadFeed reads a feed file and returns its usable records in file order.
// Awemes without an id or description are skipped. A page whose aweme_list
// is malformed is skipped with a warning.
func ReadFeed(filename string) (*Feed, error) {
	pages, err := ReadPages(filename)
	if err != nil {
		return nil, err
	}

	f := &Feed{Filename: filename}
	for i, page := range pages {
		awemes, err := page.GetSliceOfMessages("aweme_list")
		if err != nil {
			log.WithError(err).Warnf("skipping page %d of %s", i, filename)
			continue
		}

		for _, a := range awemes {
			r, err := ParseRecord(a)
			if errors.Is(err, ErrIncomplete) {
				log.Debugf("skipping aweme in %s: %v", filename, err)
				f.Skipped++
				continue
			}
			f.Records = append(f.Records, r)
		}
	}

	return f, nil
}
