package datautil

import (
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// Apex returns the registered domain (public suffix plus one label) for a
// hostname, or the empty string when none can be derived (IP literals,
// bare suffixes, garbage).
func Apex(hostname string) string {
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")
	if hostname == "" {
		return ""
	}
	d, err := publicsuffix.Domain(hostname)
	if err != nil {
		return ""
	}
	return d
}
