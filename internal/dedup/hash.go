package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"jobsieve/internal/sources"
)

const fieldSep = "\x1f"

// ContentHash returns the hex SHA-256 identity of p.
func ContentHash(p sources.Posting) string {
	var key string
	if id := normalize(p.SourceJobID); id != "" {
		key = strings.Join([]string{"id", normalize(p.Source), id}, fieldSep)
	} else {
		key = strings.Join([]string{"url", CanonicalURL(p.URL), normalize(p.Title), normalize(p.Company)}, fieldSep)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CanonicalURL lowercases scheme and host, drops a leading "www.", the
// fragment, utm_* tracking parameters, and a trailing slash. Unparseable
// input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
