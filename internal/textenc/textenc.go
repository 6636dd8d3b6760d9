// Package textenc decodes upstream page bodies into UTF-8 text.
//
// The catalog source historically serves windows-1251, so an undeclared body is
// decoded as windows-1251 first. When more than a tenth of the decoded runes are
// U+FFFD the body is decoded again with the other candidate. The heuristic is
// best-effort and never fails.
package textenc

import (
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Canonical charset names.
const (
	Windows1251 = "windows-1251"
	UTF8        = "utf-8"
)

// replacementThreshold is the share of U+FFFD runes that triggers a re-decode.
const replacementThreshold = 0.10

var charsetParam = regexp.MustCompile(`(?i)charset\s*=\s*"?([^;"\s]+)`)

// Decode converts body into text, honoring the charset declared in contentType.
func Decode(body []byte, contentType string) string {
	name, enc := Resolve(DeclaredCharset(contentType))
	text, err := decodeWith(enc, body)
	if err != nil {
		return forceUTF8(body)
	}
	if !replacementHeavy(text) {
		return text
	}
	altName := Windows1251
	if name == Windows1251 {
		altName = UTF8
	}
	_, altEnc := Resolve(altName)
	alt, err := decodeWith(altEnc, body)
	if err != nil {
		return forceUTF8(body)
	}
	return alt
}

// DeclaredCharset extracts the charset parameter from a Content-Type value.
func DeclaredCharset(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs, ok := params["charset"]; ok {
			return strings.ToLower(strings.TrimSpace(cs))
		}
		return ""
	}
	if m := charsetParam.FindStringSubmatch(contentType); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// Resolve maps a declared charset label to a canonical name and decoder.
// Empty or unrecognized labels resolve to windows-1251.
func Resolve(label string) (string, encoding.Encoding) {
	label = strings.ToLower(strings.TrimSpace(label))
	switch {
	case label == "":
		return Windows1251, charmap.Windows1251
	case strings.Contains(label, "1251"):
		return Windows1251, charmap.Windows1251
	case label == "utf8" || label == "utf-8":
		return UTF8, unicode.UTF8
	}
	enc, name := charset.Lookup(label)
	switch {
	case enc == nil:
		return Windows1251, charmap.Windows1251
	case name == UTF8:
		return UTF8, unicode.UTF8
	case name == Windows1251:
		return Windows1251, charmap.Windows1251
	default:
		return name, enc
	}
}

func decodeWith(enc encoding.Encoding, body []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func replacementHeavy(text string) bool {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return false
	}
	bad := strings.Count(text, string(utf8.RuneError))
	return float64(bad) > float64(total)*replacementThreshold
}

func forceUTF8(body []byte) string {
	return strings.ToValidUTF8(string(body), string(utf8.RuneError))
}
