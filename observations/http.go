package observations

import (
	"crypto/sha1"
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/probewatch/probewatch/datautil"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/store"
)

type HTTPObservation struct {
	Base

	DomainName string
	DomainApex string

	RequestURL             string
	RequestIsEncrypted     bool
	RequestRedirectFrom    string
	RequestBodyLength      int
	RequestBodyIsTruncated bool
	RequestMethod          string
	XTransport             string

	ResponseStatusCode      int
	ResponseBodyLength      int
	ResponseBodyIsTruncated bool
	ResponseBodySHA1        string
	ResponseBodyTitle       string
	ResponseBodyMetaTitle   string

	ResponseHeaderLocation string
	ResponseHeaderServer   string

	ResponseFingerprints         []string
	FingerprintCountryConsistent *bool
	ResponseMatchesBlockpage     bool
	ResponseMatchesFalsePositive bool

	Failure string
}

func (o *HTTPObservation) TableName() string { return "obs_http" }

func (o *HTTPObservation) Row() store.Row {
	return append(o.baseRow(), store.Row{
		{"domain_name", o.DomainName},
		{"domain_apex", o.DomainApex},
		{"request_url", o.RequestURL},
		{"request_is_encrypted", o.RequestIsEncrypted},
		{"request_redirect_from", o.RequestRedirectFrom},
		{"request_body_length", o.RequestBodyLength},
		{"request_body_is_truncated", o.RequestBodyIsTruncated},
		{"request_method", o.RequestMethod},
		{"x_transport", o.XTransport},
		{"response_status_code", o.ResponseStatusCode},
		{"response_body_length", o.ResponseBodyLength},
		{"response_body_is_truncated", o.ResponseBodyIsTruncated},
		{"response_body_sha1", o.ResponseBodySHA1},
		{"response_body_title", o.ResponseBodyTitle},
		{"response_body_meta_title", o.ResponseBodyMetaTitle},
		{"response_header_location", o.ResponseHeaderLocation},
		{"response_header_server", o.ResponseHeaderServer},
		{"response_fingerprints", o.ResponseFingerprints},
		{"fingerprint_country_consistent", o.FingerprintCountryConsistent},
		{"response_matches_blockpage", o.ResponseMatchesBlockpage},
		{"response_matches_false_positive", o.ResponseMatchesFalsePositive},
		{"failure", o.Failure},
	}...)
}

// redirectSource inspects the transaction following idx in the raw ordering
// and, when its Location header names the current request URL, returns that
// transaction's request URL. Attribution is best effort: any missing field
// or undecodable header simply yields no attribution.
func redirectSource(transactions []measurement.HTTPTransaction, idx int, requestURL string) string {
	if idx+1 >= len(transactions) {
		return ""
	}
	next := transactions[idx+1]
	if next.Response == nil || next.Request == nil {
		return ""
	}
	location := datautil.FirstHeader("location", next.Response.HeadersList)
	if location == nil || !utf8.Valid(location) {
		return ""
	}
	if string(location) != requestURL {
		return ""
	}
	return next.Request.URL
}

// HTTP builds one observation per transaction. Transactions without a request
// object are too malformed to attribute and produce nothing.
func (b *Builder) HTTP(transactions []measurement.HTTPTransaction, target string) []*HTTPObservation {
	var out []*HTTPObservation
	for idx, tx := range transactions {
		if tx.Request == nil {
			continue
		}

		obs := &HTTPObservation{
			Base:    b.nextBase(target, tx.T),
			Failure: failureString(tx.Failure),
		}

		obs.RequestURL = tx.Request.URL
		if u, err := url.Parse(tx.Request.URL); err == nil {
			obs.DomainName = u.Hostname()
			obs.DomainApex = datautil.Apex(obs.DomainName)
			obs.RequestIsEncrypted = u.Scheme == "https"
		}
		obs.RequestMethod = tx.Request.Method
		obs.RequestBodyIsTruncated = tx.Request.BodyIsTruncated
		obs.XTransport = tx.Request.XTransport
		if obs.XTransport == "" {
			obs.XTransport = "tcp"
		}
		if tx.Request.Body != nil {
			obs.RequestBodyLength = len(tx.Request.Body.Value)
		}

		if tx.Response == nil {
			out = append(out, obs)
			continue
		}

		obs.ResponseBodyIsTruncated = tx.Response.BodyIsTruncated

		for _, fp := range b.fpdb.MatchHTTP(tx.Response) {
			if fp.Scope == "fp" {
				obs.ResponseMatchesFalsePositive = true
			} else {
				obs.ResponseMatchesBlockpage = true
			}
			if len(fp.ExpectedCountries) > 0 && fp.ExpectsCountry(b.msmt.ProbeCC) {
				consistent := true
				obs.FingerprintCountryConsistent = &consistent
			}
			obs.ResponseFingerprints = append(obs.ResponseFingerprints, fp.Name)
		}

		if tx.Response.Body != nil && len(tx.Response.Body.Value) > 0 {
			body := tx.Response.Body.Value
			obs.ResponseBodyLength = len(body)
			obs.ResponseBodySHA1 = fmt.Sprintf("%x", sha1.Sum(body))
			obs.ResponseBodyTitle = datautil.HTMLTitle(body)
			obs.ResponseBodyMetaTitle = datautil.HTMLMetaTitle(body)
		}

		obs.ResponseStatusCode = tx.Response.Code
		obs.ResponseHeaderLocation = datautil.GuessDecode(datautil.FirstHeader("location", tx.Response.HeadersList))
		obs.ResponseHeaderServer = datautil.GuessDecode(datautil.FirstHeader("server", tx.Response.HeadersList))

		obs.RequestRedirectFrom = redirectSource(transactions, idx, obs.RequestURL)

		out = append(out, obs)
	}
	return out
}
