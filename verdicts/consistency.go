package verdicts

import (
	"net"
	"strings"

	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/observations"
)

// dnsConsistency scores how plausible a DNS answer is against the baseline's
// TLS-confirmed answers when no direct TLS evidence exists for it: 1.0 for an
// exact match, 0.9 when the answer lives in the same network or organisation
// as a confirmed answer, 0 otherwise. The second return is false when the
// answer is absent or not an IP literal, in which case no score applies.
func dnsConsistency(dnsObs *observations.DNSObservation, baseline *DNSBaseline, resolver netinfo.Resolver) (float64, bool) {
	if dnsObs.Answer == "" {
		return 0, false
	}
	if net.ParseIP(dnsObs.Answer) == nil {
		// not an IP, we can't do much to validate it
		return 0, false
	}
	if baseline.HasConsistentAnswer(dnsObs.Answer) {
		return 1.0, true
	}

	baselineASNs := map[int]bool{}
	baselineOrgNames := map[string]bool{}
	for _, ip := range baseline.TLSConsistentAnswers {
		if info := resolver.LookupIP(dnsObs.Timestamp, ip); info != nil {
			baselineASNs[info.AS.ASN] = true
			baselineOrgNames[strings.ToLower(info.AS.ASOrgName)] = true
		}
	}

	if baselineASNs[dnsObs.AnswerASN] {
		return 0.9, true
	}
	if dnsObs.AnswerASOrgName != "" && baselineOrgNames[strings.ToLower(dnsObs.AnswerASOrgName)] {
		return 0.9, true
	}
	return 0, true
}
