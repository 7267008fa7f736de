package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ccollins476ad/awemescrape/aweme"
)

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeDescription turns a post description into a file name component.
func SanitizeDescription(desc string) string {
	desc = strings.NewReplacer("\n", "", "\r", "").Replace(desc)
	return unsafeFilenameChars.ReplaceAllString(desc, "_")
}

// FormatDiggCount abbreviates large like counts in units of ten thousand,
// e.g. 123456 -> "12.3W".
func FormatDiggCount(n int64) string {
	if n >= 10000 {
		return fmt.Sprintf("%.1fW", float64(n)/10000)
	}
	return strconv.FormatInt(n, 10)
}

// RecordFolder returns the folder holding all media of a record, inside the
// directory of the feed file it came from.
func RecordFolder(feedDir string, r aweme.Record) string {
	name := fmt.Sprintf("%s-%s-%s", SanitizeDescription(r.Desc), r.ID, FormatDiggCount(r.DiggCount))
	return filepath.Join(feedDir, name)
}
