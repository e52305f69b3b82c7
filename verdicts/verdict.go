// Package verdicts compares observations against fleet-wide per-day-domain
// baselines and classifies likely network interference.
package verdicts

import (
	"time"

	"github.com/probewatch/probewatch/observations"
	"github.com/probewatch/probewatch/store"
)

// Outcome is the single-letter interference classification.
type Outcome string

const (
	// everything is OK
	OutcomeOK Outcome = "k"
	// blocking is happening with an unknown scope
	OutcomeBlocked Outcome = "b"
	// national level blocking
	OutcomeNationalBlock Outcome = "n"
	// isp level blocking
	OutcomeISPBlock Outcome = "i"
	// local blocking (school, office, home network)
	OutcomeLocalBlock Outcome = "l"
	// server-side blocking
	OutcomeServerSideBlock Outcome = "s"
	// the subject is down
	OutcomeDown Outcome = "d"
	// a signal indicating some form of network throttling
	OutcomeThrottling Outcome = "t"
)

// ScopeOutcome maps a fingerprint scope to the outcome its match implies.
func ScopeOutcome(scope string) Outcome {
	switch scope {
	case "nat":
		return OutcomeNationalBlock
	case "isp":
		return OutcomeISPBlock
	case "inst":
		return OutcomeLocalBlock
	case "fp":
		return OutcomeServerSideBlock
	}
	return OutcomeBlocked
}

// Verdict is the classified result of comparing one session's observations
// for a domain against the baseline. OutcomeDetail carries the finer
// breakdown, for example "dns.nxdomain".
type Verdict struct {
	MeasurementUID string
	VerdictID      string
	ReportID       string
	Timestamp      time.Time

	Confidence float64

	Subject         string
	SubjectCategory string
	SubjectDetail   string

	Outcome       Outcome
	OutcomeDetail string

	base observations.Base
}

func (v *Verdict) TableName() string { return "verdict" }

func (v *Verdict) Row() store.Row {
	return store.Row{
		{"measurement_uid", v.base.MeasurementUID},
		{"verdict_id", v.VerdictID},
		{"report_id", v.base.ReportID},
		{"timestamp", v.base.Timestamp},
		{"probe_asn", v.base.ProbeASN},
		{"probe_cc", v.base.ProbeCC},
		{"probe_as_org_name", v.base.ProbeASOrgName},
		{"probe_as_cc", v.base.ProbeASCC},
		{"network_type", v.base.NetworkType},
		{"resolver_ip", v.base.ResolverIP},
		{"resolver_asn", v.base.ResolverASN},
		{"resolver_cc", v.base.ResolverCC},
		{"resolver_as_org_name", v.base.ResolverASOrgName},
		{"resolver_as_cc", v.base.ResolverASCC},
		{"confidence", v.Confidence},
		{"subject", v.Subject},
		{"subject_category", v.SubjectCategory},
		{"subject_detail", v.SubjectDetail},
		{"outcome", string(v.Outcome)},
		{"outcome_detail", v.OutcomeDetail},
	}
}

// fromObservation stamps a verdict with the identifying and probe metadata of
// the observation that produced it. The verdict id is the observation id.
func fromObservation(base observations.Base, confidence float64, subject, subjectCategory, subjectDetail string, outcome Outcome, outcomeDetail string) *Verdict {
	return &Verdict{
		MeasurementUID:  base.MeasurementUID,
		VerdictID:       base.ObservationID,
		ReportID:        base.ReportID,
		Timestamp:       base.Timestamp,
		Confidence:      confidence,
		Subject:         subject,
		SubjectCategory: subjectCategory,
		SubjectDetail:   subjectDetail,
		Outcome:         outcome,
		OutcomeDetail:   outcomeDetail,
		base:            base,
	}
}
