package aweme

import (
	"errors"
	"fmt"
)

// ErrIncomplete is returned by ParseRecord for an aweme lacking its id or
// description.
var ErrIncomplete = errors.New("incomplete aweme")

// Record is one post of a feed, reduced to what the downloader needs. Every
// URL list keeps the positions of the source list; entries that were not
// strings are "".
type Record struct {
	ID        string
	Desc      string
	Nickname  string
	DiggCount int64

	CoverURLs []string // video.cover.url_list
	VideoURLs []string // video.play_addr.url_list
	MusicURLs []string // music.play_url.url_list

	// ImageURLs holds the "images" list when its entries are plain URLs.
	ImageURLs []string

	// ImageSets holds the "images" list when its entries are objects, each
	// carrying the quality variants of one attachment in "url_list".
	ImageSets [][]string
}

// HasImageSets reports whether the record's images are per-attachment
// variant lists rather than plain URLs.
func (r *Record) HasImageSets() bool {
	return len(r.ImageSets) > 0
}

// ParseRecord converts one decoded aweme into a Record. Groups that are
// missing or malformed are left empty.
func ParseRecord(m Message) (Record, error) {
	r := Record{
		ID:   m.GetID("aweme_id"),
		Desc: m.GetString("desc"),
	}
	if r.ID == "" {
		return r, fmt.Errorf("%w: missing aweme_id", ErrIncomplete)
	}
	if r.Desc == "" {
		return r, fmt.Errorf("%w: missing desc: aweme_id=%s", ErrIncomplete, r.ID)
	}

	r.Nickname = m.GetPath("author").GetString("nickname")
	r.DiggCount = m.GetPath("statistics").GetInt("digg_count")

	r.CoverURLs = m.GetPath("video", "cover").GetStrings("url_list")
	r.VideoURLs = m.GetPath("video", "play_addr").GetStrings("url_list")
	r.MusicURLs = m.GetPath("music", "play_url").GetStrings("url_list")

	r.ImageURLs, r.ImageSets = parseImages(m["images"])

	return r, nil
}

// parseImages accepts either a list of URL strings or a list of objects with
// a "url_list". In a list of objects, string entries become single-variant
// sets.
func parseImages(x any) ([]string, [][]string) {
	slice, ok := x.([]any)
	if !ok || len(slice) == 0 {
		return nil, nil
	}

	hasObjects := false
	for _, a := range slice {
		if _, ok := a.(map[string]any); ok {
			hasObjects = true
			break
		}
	}

	if !hasObjects {
		urls := make([]string, len(slice))
		for i, a := range slice {
			urls[i], _ = a.(string)
		}
		return urls, nil
	}

	sets := make([][]string, len(slice))
	for i, a := range slice {
		switch v := a.(type) {
		case map[string]any:
			sets[i] = Message(v).GetStrings("url_list")
		case string:
			sets[i] = []string{v}
		}
	}
	return nil, sets
}
