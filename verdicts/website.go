package verdicts

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/observations"
)

const categoryWebsite = "website"

// MakeWebsiteTCPVerdict classifies a failed TCP connect against the
// fleet-wide reachability of the same address. The probe's own vantage point
// is removed from the unreachable set so it cannot corroborate itself.
func MakeWebsiteTCPVerdict(tcpObs *observations.TCPObservation, baseline *TCPBaseline) *Verdict {
	outcome := OutcomeOK
	confidence := 1.0
	outcomeDetail := ""

	if tcpObs.Failure != "" {
		unreachable := removeOne(baseline.UnreachableCCASN, ccASN{tcpObs.ProbeCC, tcpObs.ProbeASN})
		reachableCount := len(baseline.ReachableCCASN)
		unreachableCount := len(unreachable)
		if reachableCount > unreachableCount {
			// the +1 adds back the removed own result and avoids a divide by zero
			confidence = float64(reachableCount) / float64(reachableCount+unreachableCount+1)
			outcome = OutcomeBlocked
		} else if unreachableCount > reachableCount {
			confidence = float64(unreachableCount+1) / float64(reachableCount+unreachableCount+1)
			outcome = OutcomeDown
		}
		outcomeDetail = "tcp." + tcpObs.Failure
	}

	if outcome == OutcomeOK {
		return nil
	}
	return fromObservation(
		tcpObs.Base,
		confidence,
		tcpObs.DomainName,
		categoryWebsite,
		fmt.Sprintf("%s:%d", tcpObs.IP, tcpObs.Port),
		outcome,
		outcomeDetail,
	)
}

// MakeWebsiteDNSVerdict classifies a single DNS observation. A nil return
// means the observation is a sign of everything being OK.
func MakeWebsiteDNSVerdict(dnsObs *observations.DNSObservation, baseline *DNSBaseline, fpdb *fingerprints.DB, resolver netinfo.Resolver) *Verdict {
	if dnsObs.FingerprintID != "" {
		confidence := 1.0
		// a fingerprint seen in an unexpected country significantly reduces
		// the confidence in the block
		if fp := fpdb.Get(dnsObs.FingerprintID); fp != nil &&
			dnsObs.ProbeCC != "" && len(fp.ExpectedCountries) > 0 && !fp.ExpectsCountry(dnsObs.ProbeCC) {
			log.Debug().Msgf("inconsistent probe_cc vs expected_countries %s != %v", dnsObs.ProbeCC, fp.ExpectedCountries)
			confidence = 0.7
		}
		return fromObservation(
			dnsObs.Base,
			confidence,
			dnsObs.DomainName,
			categoryWebsite,
			dnsObs.Answer,
			OutcomeBlocked,
			"dns.blockpage",
		)
	}

	if dnsObs.AnswerIsBogon && len(baseline.TLSConsistentAnswers) > 0 {
		return fromObservation(
			dnsObs.Base,
			0.9,
			dnsObs.DomainName,
			categoryWebsite,
			dnsObs.Answer,
			OutcomeBlocked,
			"dns.bogon",
		)
	}

	if dnsObs.Failure != "" {
		own := ccASN{dnsObs.ProbeCC, dnsObs.ProbeASN}
		failureCount := len(removeOne(baseline.FailureCCASN, own))
		okCount := len(baseline.OKCCASN)

		var confidence float64
		var outcome Outcome
		var outcomeDetail string
		if dnsObs.Failure == "dns_nxdomain_error" {
			nxdomainCount := len(removeOne(baseline.NXDomainCCASN, own))
			if okCount > nxdomainCount {
				// an NXDOMAIN weighs a bit more than other failures
				confidence = float64(okCount) / float64(okCount+nxdomainCount+1)
				confidence = confidence * 1.5
				if confidence > 0.8 {
					confidence = 0.8
				}
				outcome = OutcomeBlocked
			} else {
				confidence = float64(nxdomainCount+1) / float64(okCount+nxdomainCount+1)
				outcome = OutcomeDown
			}
			outcomeDetail = "dns.nxdomain"
		} else if okCount > failureCount {
			confidence = float64(okCount) / float64(okCount+failureCount+1)
			outcome = OutcomeBlocked
			outcomeDetail = "dns." + dnsObs.Failure
		} else {
			confidence = float64(failureCount+1) / float64(okCount+failureCount+1)
			outcome = OutcomeDown
			outcomeDetail = "dns." + dnsObs.Failure
		}
		return fromObservation(
			dnsObs.Base,
			confidence,
			dnsObs.DomainName,
			categoryWebsite,
			dnsObs.Answer,
			outcome,
			outcomeDetail,
		)
	}

	if dnsObs.IsTLSConsistent != nil && !*dnsObs.IsTLSConsistent {
		return fromObservation(
			dnsObs.Base,
			0.8,
			dnsObs.DomainName,
			categoryWebsite,
			dnsObs.Answer,
			OutcomeBlocked,
			"dns.inconsistent",
		)
	}

	if dnsObs.IsTLSConsistent == nil {
		// TLS could not determine the consistency of this answer, either
		// because the site is not served over HTTPS or because the answer
		// isn't listening on 443 (which is quite fishy). Fall back to
		// IP-based scoring and flag low scores as somewhat likely blocks.
		score, scored := dnsConsistency(dnsObs, baseline, resolver)
		if scored && score < 0.5 {
			confidence := 0.5
			// an answer inside the probe's own network is more likely to be
			// a blockpage
			if dnsObs.AnswerASN == dnsObs.ProbeASN {
				confidence = 0.8
			} else if dnsObs.AnswerASCC == dnsObs.ProbeCC {
				confidence = 0.7
			}
			return fromObservation(
				dnsObs.Base,
				confidence,
				dnsObs.DomainName,
				categoryWebsite,
				dnsObs.Answer,
				OutcomeBlocked,
				"dns.inconsistent",
			)
		}
	}

	// no blocking detected
	return nil
}

func anyVerdict(verdicts []*Verdict, match func(*Verdict) bool) bool {
	for _, v := range verdicts {
		if match(v) {
			return true
		}
	}
	return false
}

// MakeWebsiteTLSVerdict classifies a TLS observation, suppressing cases
// already explained by a DNS inconsistency (for certificate mismatches) or a
// TCP block (for handshake failures).
func MakeWebsiteTLSVerdict(tlsObs *observations.TLSObservation, prevVerdicts []*Verdict) *Verdict {
	if tlsObs.IsCertificateValid != nil && !*tlsObs.IsCertificateValid {
		if anyVerdict(prevVerdicts, func(v *Verdict) bool {
			return strings.HasPrefix(v.OutcomeDetail, "dns.") && v.SubjectDetail == tlsObs.IP
		}) {
			return nil
		}
		return fromObservation(
			tlsObs.Base,
			1,
			tlsObs.DomainName,
			categoryWebsite,
			fmt.Sprintf("%s:%d", tlsObs.IP, tlsObs.Port),
			OutcomeBlocked,
			"tls.mitm",
		)
	}

	if tlsObs.Failure != "" {
		if anyVerdict(prevVerdicts, func(v *Verdict) bool {
			return strings.HasPrefix(v.OutcomeDetail, "tcp.") && v.SubjectDetail == tlsObs.IP+":443"
		}) {
			return nil
		}

		confidence := 0.5
		if tlsObs.Failure == "connection_closed" || tlsObs.Failure == "connection_reset" {
			confidence *= 1.4
		}
		if tlsObs.HandshakeReadCount == 0 && tlsObs.HandshakeWriteCount == 1 {
			// only the ClientHello went out, which smells like a block
			confidence *= 1.3
		}
		return fromObservation(
			tlsObs.Base,
			confidence,
			tlsObs.DomainName,
			categoryWebsite,
			fmt.Sprintf("%s:%d", tlsObs.IP, tlsObs.Port),
			OutcomeBlocked,
			"tls."+tlsObs.Failure,
		)
	}
	return nil
}

// MakeWebsiteHTTPVerdict classifies an HTTP observation, ignoring failures
// already explained by blocking detected at the DNS, TCP or TLS level.
func MakeWebsiteHTTPVerdict(httpObs *observations.HTTPObservation, baseline *HTTPBaseline, prevVerdicts []*Verdict, fpdb *fingerprints.DB) *Verdict {
	if httpObs.Failure != "" {
		if !httpObs.RequestIsEncrypted && anyVerdict(prevVerdicts, func(v *Verdict) bool {
			return strings.HasPrefix(v.OutcomeDetail, "dns.") ||
				(strings.HasPrefix(v.OutcomeDetail, "tcp.") && strings.HasSuffix(v.SubjectDetail, ":80"))
		}) {
			return nil
		}
		if httpObs.RequestIsEncrypted && anyVerdict(prevVerdicts, func(v *Verdict) bool {
			return strings.HasPrefix(v.OutcomeDetail, "dns.") ||
				(strings.HasPrefix(v.OutcomeDetail, "tcp.") && strings.HasSuffix(v.SubjectDetail, ":443")) ||
				strings.HasPrefix(v.OutcomeDetail, "tls.")
		}) {
			return nil
		}

		failureCount := len(removeOne(baseline.FailureCCASN, ccASN{httpObs.ProbeCC, httpObs.ProbeASN}))
		okCount := len(baseline.OKCCASN)
		var confidence float64
		var outcome Outcome
		if okCount > failureCount {
			// the +1 adds back the removed own result and avoids a divide by zero
			confidence = float64(okCount) / float64(okCount+failureCount+1)
			outcome = OutcomeBlocked
		} else {
			confidence = float64(failureCount+1) / float64(okCount+failureCount+1)
			outcome = OutcomeDown
		}

		outcomeDetail := "http."
		if httpObs.RequestIsEncrypted {
			outcomeDetail = "https."
		}
		outcomeDetail += httpObs.Failure
		return fromObservation(
			httpObs.Base,
			confidence,
			httpObs.DomainName,
			categoryWebsite,
			"",
			outcome,
			outcomeDetail,
		)
	}

	if httpObs.ResponseMatchesBlockpage {
		outcome := OutcomeBlocked
		confidence := 0.5
		if httpObs.RequestIsEncrypted {
			confidence = 0
		} else if httpObs.FingerprintCountryConsistent != nil && *httpObs.FingerprintCountryConsistent {
			confidence = 1
		}

		for _, name := range httpObs.ResponseFingerprints {
			if fp := fpdb.Get(name); fp != nil && fp.Scope != "" {
				outcome = ScopeOutcome(fp.Scope)
				break
			}
		}

		return fromObservation(
			httpObs.Base,
			confidence,
			httpObs.DomainName,
			categoryWebsite,
			"",
			outcome,
			"http.blockpage",
		)
	}

	if !httpObs.RequestIsEncrypted {
		if httpObs.ResponseMatchesFalsePositive {
			return nil
		}
		if httpObs.ResponseBodyTitle == baseline.ResponseBodyTitle {
			return nil
		}
		if httpObs.ResponseBodyMetaTitle == baseline.ResponseBodyMetaTitle {
			return nil
		}
		if httpObs.ResponseBodySHA1 == baseline.ResponseBodySHA1 {
			return nil
		}

		if httpObs.ResponseBodyLength > 0 && baseline.ResponseBodyLength > 0 &&
			(float64(httpObs.ResponseBodyLength)+1.0)/(float64(baseline.ResponseBodyLength)+1.0) < 0.7 {
			return fromObservation(
				httpObs.Base,
				0.6,
				httpObs.DomainName,
				categoryWebsite,
				"",
				OutcomeBlocked,
				"http.bodydiff",
			)
		}
	}
	return nil
}

// MakeWebsiteVerdicts produces the verdicts for one session of a website
// measurement. DNS observations are mandatory; the other lists may be empty.
//
// The order matters: knowledge of blocking at one layer informs the layers
// above it. A certificate validation error with consistent DNS is a MITM; a
// failing TLS handshake on an address whose TCP connect already fails is not
// SNI filtering. When no verdict fires at all, a single OK verdict for the
// domain is emitted.
func MakeWebsiteVerdicts(
	dnsObsList []*observations.DNSObservation,
	dnsBaseline *DNSBaseline,
	fpdb *fingerprints.DB,
	resolver netinfo.Resolver,
	tcpObsList []*observations.TCPObservation,
	tcpBaselineMap map[string]*TCPBaseline,
	tlsObsList []*observations.TLSObservation,
	httpObsList []*observations.HTTPObservation,
	httpBaselineMap map[string]*HTTPBaseline,
) []*Verdict {
	var verdicts []*Verdict

	domainName := dnsObsList[0].DomainName

	var dnsVerdicts []*Verdict
	for _, dnsObs := range dnsObsList {
		if dnsObs.DomainName != domainName {
			log.Warn().Msgf("inconsistent domain_name in dns observation: %s != %s", dnsObs.DomainName, domainName)
		}
		dnsVerdict := MakeWebsiteDNSVerdict(dnsObs, dnsBaseline, fpdb, resolver)
		if dnsVerdict == nil {
			// an OK DNS observation marks the earlier DNS verdicts as likely
			// false positives: no DNS level censorship is happening
			dnsVerdicts = nil
			break
		}
		dnsVerdicts = append(dnsVerdicts, dnsVerdict)
	}
	verdicts = append(verdicts, dnsVerdicts...)

	for _, tcpObs := range tcpObsList {
		baseline := tcpBaselineMap[fmt.Sprintf("%s:%d", tcpObs.IP, tcpObs.Port)]
		if baseline == nil {
			continue
		}
		if tcpVerdict := MakeWebsiteTCPVerdict(tcpObs, baseline); tcpVerdict != nil {
			verdicts = append(verdicts, tcpVerdict)
		}
	}

	for _, tlsObs := range tlsObsList {
		if tlsVerdict := MakeWebsiteTLSVerdict(tlsObs, verdicts); tlsVerdict != nil {
			verdicts = append(verdicts, tlsVerdict)
		}
	}

	for _, httpObs := range httpObsList {
		baseline := httpBaselineMap[httpObs.RequestURL]
		if baseline == nil {
			continue
		}
		if httpVerdict := MakeWebsiteHTTPVerdict(httpObs, baseline, verdicts, fpdb); httpVerdict != nil {
			verdicts = append(verdicts, httpVerdict)
		}
	}

	if len(verdicts) == 0 {
		// nothing fired, so it's reasonable to say there is no interference
		// for this domain
		verdicts = append(verdicts, fromObservation(
			dnsObsList[0].Base,
			0.9,
			domainName,
			categoryWebsite,
			"",
			OutcomeOK,
			"all",
		))
	}
	return verdicts
}
