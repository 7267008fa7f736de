package download

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

// storageState is the subset of a browser automation storage-state file that
// carries the login cookies.
type storageState struct {
	Cookies []struct {
		Name     string  `json:"name"`
		Value    string  `json:"value"`
		Domain   string  `json:"domain"`
		Path     string  `json:"path"`
		Expires  float64 `json:"expires"`
		HTTPOnly bool    `json:"httpOnly"`
		Secure   bool    `json:"secure"`
	} `json:"cookies"`
}

// LoadStorageState reads the cookies saved by the feed collector's browser
// session. Cookies without a name or domain are dropped.
func LoadStorageState(filename string) ([]*http.Cookie, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var st storageState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("failed to decode storage state %s: %w", filename, err)
	}

	var cookies []*http.Cookie
	for _, c := range st.Cookies {
		if c.Name == "" || c.Domain == "" {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if hc.Path == "" {
			hc.Path = "/"
		}
		// -1 means a session cookie.
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		cookies = append(cookies, hc)
	}

	return cookies, nil
}

// setCookies installs each cookie in the jar under the origin its domain
// attribute names.
func setCookies(jar *cookiejar.Jar, cookies []*http.Cookie) {
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		u := &url.URL{Scheme: "https", Host: host, Path: c.Path}
		jar.SetCookies(u, []*http.Cookie{c})
	}
}
