package datautil

import (
	"regexp"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

var (
	metaTitleRegexp = regexp.MustCompile(`(?is)<meta.*?property="og:title".*?content="(.*?)"`)
	titleRegexp     = regexp.MustCompile(`(?is)<title.*?>(.*?)</title>`)
)

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// GuessDecode is a best-effort decoding of a byte string: ASCII, then UTF-8,
// then Latin-1. As a last resort the invalid bytes are dropped.
func GuessDecode(b []byte) string {
	if isASCII(b) {
		return string(b)
	}
	if utf8.Valid(b) {
		return string(b)
	}
	if s, err := charmap.ISO8859_1.NewDecoder().Bytes(b); err == nil {
		return string(s)
	}
	log.Warn().Msgf("unable to decode '%x'", b)
	stripped := make([]byte, 0, len(b))
	for _, c := range b {
		if c < 0x80 {
			stripped = append(stripped, c)
		}
	}
	return string(stripped)
}

// HTMLMetaTitle extracts the OpenGraph title of an HTML document.
func HTMLMetaTitle(body []byte) string {
	if m := metaTitleRegexp.FindSubmatch(body); m != nil {
		return GuessDecode(m[1])
	}
	return ""
}

// HTMLTitle extracts the content of the <title> tag.
func HTMLTitle(body []byte) string {
	if m := titleRegexp.FindSubmatch(body); m != nil {
		return GuessDecode(m[1])
	}
	return ""
}

// HTMLDocumentTitle returns a single title for the document. The OpenGraph
// title takes precedence over the <title> tag.
func HTMLDocumentTitle(body []byte) string {
	if t := HTMLMetaTitle(body); t != "" {
		return t
	}
	return HTMLTitle(body)
}
