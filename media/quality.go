package media

import (
	"fmt"
	"strconv"
	"strings"
)

type qualityMode int

const (
	modeAll qualityMode = iota
	modeBest
	modeIndex
)

// Quality selects which variants of a URL list are downloaded.
type Quality struct {
	mode  qualityMode
	index int
}

var (
	// QualityAll downloads every variant.
	QualityAll = Quality{mode: modeAll}

	// QualityBest downloads the last variant of each list.
	QualityBest = Quality{mode: modeBest}
)

// QualityIndex downloads exactly variant n. A negative n counts from the end
// of the list; -1 is equivalent to QualityBest.
func QualityIndex(n int) Quality {
	if n == -1 {
		return QualityBest
	}
	return Quality{mode: modeIndex, index: n}
}

// ParseQuality parses "all", "best" or a variant index. The empty string and
// "none" mean all.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "none":
		return QualityAll, nil
	case "best":
		return QualityBest, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return QualityAll, fmt.Errorf("invalid quality %q: want all, best or a variant index", s)
	}
	return QualityIndex(n), nil
}

// String returns the form accepted by ParseQuality.
func (q Quality) String() string {
	switch q.mode {
	case modeBest:
		return "best"
	case modeIndex:
		return strconv.Itoa(q.index)
	default:
		return "all"
	}
}

// IsAll reports whether every variant is selected.
func (q Quality) IsAll() bool {
	return q.mode == modeAll
}

// Select returns the positions chosen from a list of n variants. ok is false
// if the chosen index does not exist.
func (q Quality) Select(n int) (idx []int, ok bool) {
	switch q.mode {
	case modeAll:
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx, true

	case modeBest:
		if n == 0 {
			return nil, false
		}
		return []int{n - 1}, true

	default:
		i := q.index
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return nil, false
		}
		return []int{i}, true
	}
}

func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *Quality) UnmarshalText(b []byte) error {
	parsed, err := ParseQuality(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
