package download

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// partialSize returns the size of an existing partial file at path. exists is
// false if there is no file yet.
func partialSize(path string) (size int64, exists bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if info.IsDir() {
		return 0, false, preconditionf("destination is a directory: %s", path)
	}
	return info.Size(), true, nil
}

// removeIfExists deletes path. A missing file is not an error.
func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total may be -1 if unknown. An unsatisfied
// range ("bytes */total") yields start=end=-1.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total, bytes start-end/* or bytes */total
	header = strings.TrimSpace(strings.TrimPrefix(header, "bytes "))
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	if parts[0] == "*" {
		return -1, -1, total, nil
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}

	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	return start, end, total, nil
}

// isMediaType reports whether a Content-Type header names video, audio or
// image content.
func isMediaType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, family := range []string{"video/", "audio/", "image/"} {
		if strings.HasPrefix(ct, family) {
			return true
		}
	}
	return false
}
