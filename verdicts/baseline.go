package verdicts

import (
	"time"

	"github.com/pkg/errors"

	"github.com/probewatch/probewatch/store"
)

// ccASN identifies one vantage point: a probe's country and network.
type ccASN struct {
	CC  string
	ASN int
}

// removeOne drops the first occurrence of the given vantage point, so a
// probe's own result does not count as corroboration for itself.
func removeOne(list []ccASN, target ccASN) []ccASN {
	out := make([]ccASN, 0, len(list))
	removed := false
	for _, e := range list {
		if !removed && e == target {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out
}

// dayWindow returns the inclusive timestamp bounds of a calendar day.
func dayWindow(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// DNSBaseline is the fleet-wide DNS ground truth for one (day, domain):
// which vantage points resolved it fine, which failed, and which resolved
// answers are confirmed legitimate via a valid TLS handshake.
type DNSBaseline struct {
	Domain               string
	NXDomainCCASN        []ccASN
	FailureCCASN         []ccASN
	OKCCASN              []ccASN
	TLSConsistentAnswers []string
}

// HasConsistentAnswer reports whether the answer is in the TLS-confirmed set.
func (b *DNSBaseline) HasConsistentAnswer(answer string) bool {
	for _, a := range b.TLSConsistentAnswers {
		if a == answer {
			return true
		}
	}
	return false
}

func MakeDNSBaseline(day time.Time, domainName string, conn store.Connection) (*DNSBaseline, error) {
	baseline := &DNSBaseline{Domain: domainName}
	start, end := dayWindow(day)

	rows, err := conn.Execute(`SELECT DISTINCT ip FROM obs_tls
	WHERE is_certificate_valid = true
	AND domain_name = $1
	AND timestamp >= $2
	AND timestamp <= $3`, domainName, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "query tls consistent answers")
	}
	for _, row := range rows {
		baseline.TLSConsistentAnswers = append(baseline.TLSConsistentAnswers, columnString(row[0]))
	}

	rows, err = conn.Execute(`SELECT DISTINCT probe_cc, probe_asn, failure FROM obs_dns
	WHERE domain_name = $1
	AND timestamp >= $2
	AND timestamp <= $3`, domainName, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "query dns baseline")
	}
	for _, row := range rows {
		entry := ccASN{columnString(row[0]), columnInt(row[1])}
		failure := columnString(row[2])
		if failure == "" {
			baseline.OKCCASN = append(baseline.OKCCASN, entry)
		} else {
			baseline.FailureCCASN = append(baseline.FailureCCASN, entry)
			if failure == "dns_nxdomain_error" {
				baseline.NXDomainCCASN = append(baseline.NXDomainCCASN, entry)
			}
		}
	}
	return baseline, nil
}

// TCPBaseline aggregates fleet-wide reachability of one address.
type TCPBaseline struct {
	Address          string
	ReachableCCASN   []ccASN
	UnreachableCCASN []ccASN
}

// MakeTCPBaselineMap aggregates same-day reachability per "ip:port" address.
func MakeTCPBaselineMap(day time.Time, domainName string, conn store.Connection) (map[string]*TCPBaseline, error) {
	baselineMap := map[string]*TCPBaseline{}
	start, end := dayWindow(day)

	rows, err := conn.Execute(`SELECT probe_cc, probe_asn, ip, port, failure FROM obs_tcp
	WHERE domain_name = $1
	AND timestamp >= $2
	AND timestamp <= $3
	GROUP BY probe_cc, probe_asn, ip, port, failure`, domainName, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "query tcp baseline")
	}
	for _, row := range rows {
		entry := ccASN{columnString(row[0]), columnInt(row[1])}
		address := columnString(row[2]) + ":" + columnIntString(row[3])
		b, ok := baselineMap[address]
		if !ok {
			b = &TCPBaseline{Address: address}
			baselineMap[address] = b
		}
		if columnString(row[4]) == "" {
			b.ReachableCCASN = append(b.ReachableCCASN, entry)
		} else {
			b.UnreachableCCASN = append(b.UnreachableCCASN, entry)
		}
	}
	return baselineMap, nil
}

// HTTPBaseline aggregates the fleet-observed "normal" response shape of one
// request URL.
type HTTPBaseline struct {
	URL          string
	FailureCCASN []ccASN
	OKCCASN      []ccASN

	ResponseBodyLength    int
	ResponseBodySHA1      string
	ResponseBodyTitle     string
	ResponseBodyMetaTitle string

	ResponseStatusCode int
}

// MakeHTTPBaselineMap aggregates same-day request outcomes per request URL,
// including a representative successful response shape.
func MakeHTTPBaselineMap(day time.Time, domainName string, conn store.Connection) (map[string]*HTTPBaseline, error) {
	baselineMap := map[string]*HTTPBaseline{}
	start, end := dayWindow(day)

	rows, err := conn.Execute(`SELECT probe_cc, probe_asn, request_url, failure FROM obs_http
	WHERE domain_name = $1
	AND timestamp >= $2
	AND timestamp <= $3
	GROUP BY probe_cc, probe_asn, request_url, failure`, domainName, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "query http baseline")
	}
	for _, row := range rows {
		entry := ccASN{columnString(row[0]), columnInt(row[1])}
		requestURL := columnString(row[2])
		b, ok := baselineMap[requestURL]
		if !ok {
			b = &HTTPBaseline{URL: requestURL}
			baselineMap[requestURL] = b
		}
		if columnString(row[3]) == "" {
			b.OKCCASN = append(b.OKCCASN, entry)
		} else {
			b.FailureCCASN = append(b.FailureCCASN, entry)
		}
	}

	rows, err = conn.Execute(`SELECT request_url,
	response_body_sha1,
	response_body_length,
	response_body_title,
	response_body_meta_title,
	response_status_code
	FROM obs_http
	WHERE failure = ''
	AND domain_name = $1
	AND timestamp >= $2
	AND timestamp <= $3
	ORDER BY request_url`, domainName, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "query http response shapes")
	}
	seen := map[string]bool{}
	for _, row := range rows {
		requestURL := columnString(row[0])
		// first successful response per URL stands in for the typical shape
		if seen[requestURL] {
			continue
		}
		seen[requestURL] = true
		b, ok := baselineMap[requestURL]
		if !ok {
			b = &HTTPBaseline{URL: requestURL}
			baselineMap[requestURL] = b
		}
		b.ResponseBodySHA1 = columnString(row[1])
		b.ResponseBodyLength = columnInt(row[2])
		b.ResponseBodyTitle = columnString(row[3])
		b.ResponseBodyMetaTitle = columnString(row[4])
		b.ResponseStatusCode = columnInt(row[5])
	}

	return baselineMap, nil
}
