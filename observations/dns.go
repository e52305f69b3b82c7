package observations

import (
	"github.com/probewatch/probewatch/datautil"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/store"
)

type DNSObservation struct {
	Base

	DomainName string
	DomainApex string

	QueryType  string
	AnswerType string
	Answer     string

	AnswerASN       int
	AnswerASOrgName string
	AnswerASCC      string
	AnswerCC        string
	AnswerIsBogon   bool

	Failure string

	FingerprintID                string
	FingerprintCountryConsistent *bool

	IsTLSConsistent *bool
}

func (o *DNSObservation) TableName() string { return "obs_dns" }

func (o *DNSObservation) Row() store.Row {
	return append(o.baseRow(), store.Row{
		{"domain_name", o.DomainName},
		{"domain_apex", o.DomainApex},
		{"query_type", o.QueryType},
		{"answer_type", o.AnswerType},
		{"answer", o.Answer},
		{"answer_asn", o.AnswerASN},
		{"answer_as_org_name", o.AnswerASOrgName},
		{"answer_as_cc", o.AnswerASCC},
		{"answer_cc", o.AnswerCC},
		{"answer_is_bogon", o.AnswerIsBogon},
		{"fingerprint_id", o.FingerprintID},
		{"fingerprint_country_consistent", o.FingerprintCountryConsistent},
		{"is_tls_consistent", o.IsTLSConsistent},
		{"failure", o.Failure},
	}...)
}

// DNS builds one observation per (query, answer) pair. A query without
// answers still produces a single observation recording its failure.
func (b *Builder) DNS(queries []measurement.DNSQuery, target string) []*DNSObservation {
	var out []*DNSObservation
	for _, query := range queries {
		if len(query.Answers) == 0 {
			obs := &DNSObservation{
				Base:       b.nextBase(target, query.T),
				QueryType:  measurement.NormalizeQueryType(query.QueryType),
				DomainName: query.Hostname,
				DomainApex: datautil.Apex(query.Hostname),
				Failure:    failureString(query.Failure),
			}
			out = append(out, obs)
			continue
		}

		for _, answer := range query.Answers {
			obs := &DNSObservation{
				Base:       b.nextBase(target, query.T),
				QueryType:  measurement.NormalizeQueryType(query.QueryType),
				DomainName: query.Hostname,
				DomainApex: datautil.Apex(query.Hostname),
				AnswerType: answer.AnswerType,
				Failure:    failureString(query.Failure),
			}

			switch {
			case answer.IPv4 != "":
				obs.Answer = answer.IPv4
				obs.AnswerIsBogon = datautil.IsIPv4Bogon(answer.IPv4)
			case answer.IPv6 != "":
				obs.Answer = answer.IPv6
				obs.AnswerIsBogon = datautil.IsIPv6Bogon(answer.IPv6)
			case answer.Hostname != "":
				obs.Answer = answer.Hostname
			}

			if answer.IPv4 != "" || answer.IPv6 != "" {
				if meta := b.netinfo.LookupIP(obs.Timestamp, obs.Answer); meta != nil {
					obs.AnswerASN = meta.AS.ASN
					obs.AnswerASCC = meta.AS.ASCC
					obs.AnswerASOrgName = meta.AS.ASOrgName
					obs.AnswerCC = meta.CC
				}
			}

			if fp := b.fpdb.MatchDNS(obs.Answer); fp != nil {
				obs.FingerprintID = fp.Name
				if len(fp.ExpectedCountries) > 0 {
					consistent := fp.ExpectsCountry(b.msmt.ProbeCC)
					obs.FingerprintCountryConsistent = &consistent
				}
			}
			out = append(out, obs)
		}
	}
	return out
}
