// Package observations turns raw per-protocol measurement records into
// enriched, typed observation rows.
package observations

import (
	"fmt"
	"time"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/store"
)

// Observation is one protocol-level observation row. Each variant declares
// its own table and an explicit, ordered field list.
type Observation interface {
	TableName() string
	Row() store.Row
}

// Base carries the fields shared by every observation variant. The
// observation id is unique within a measurement; the report id groups all
// observations of one probe test run into a session.
type Base struct {
	MeasurementUID string
	ObservationID  string
	ReportID       string
	Timestamp      time.Time
	Target         string

	ProbeASN       int
	ProbeCC        string
	ProbeASOrgName string
	ProbeASCC      string

	ResolverIP        string
	ResolverASN       int
	ResolverCC        string
	ResolverASOrgName string
	ResolverASCC      string

	SoftwareName    string
	SoftwareVersion string
	NetworkType     string
	Platform        string
	Origin          string
}

func (b *Base) baseRow() store.Row {
	return store.Row{
		{"measurement_uid", b.MeasurementUID},
		{"observation_id", b.ObservationID},
		{"report_id", b.ReportID},
		{"timestamp", b.Timestamp},
		{"target", b.Target},
		{"probe_asn", b.ProbeASN},
		{"probe_cc", b.ProbeCC},
		{"probe_as_org_name", b.ProbeASOrgName},
		{"probe_as_cc", b.ProbeASCC},
		{"resolver_ip", b.ResolverIP},
		{"resolver_asn", b.ResolverASN},
		{"resolver_cc", b.ResolverCC},
		{"resolver_as_org_name", b.ResolverASOrgName},
		{"resolver_as_cc", b.ResolverASCC},
		{"software_name", b.SoftwareName},
		{"software_version", b.SoftwareVersion},
		{"network_type", b.NetworkType},
		{"platform", b.Platform},
		{"origin", b.Origin},
	}
}

// Builder constructs observations for a single measurement. It carries the
// sequence counter that makes observation ids unique within the measurement.
type Builder struct {
	msmt     *measurement.Measurement
	netinfo  netinfo.Resolver
	fpdb     *fingerprints.DB
	base     Base
	sequence int
}

// NewBuilder validates the measurement envelope and resolves the probe and
// resolver metadata shared by all of its observations. An error here means
// the whole measurement is malformed and should be quarantined.
func NewBuilder(msmt *measurement.Measurement, resolver netinfo.Resolver, fpdb *fingerprints.DB) (*Builder, error) {
	ts, err := msmt.StartTime()
	if err != nil {
		return nil, err
	}
	asn, err := msmt.ProbeASNumber()
	if err != nil {
		return nil, err
	}

	base := Base{
		MeasurementUID:  msmt.MeasurementUID,
		ReportID:        msmt.ReportID,
		Timestamp:       ts,
		ProbeASN:        asn,
		ProbeCC:         msmt.ProbeCC,
		SoftwareName:    msmt.SoftwareName,
		SoftwareVersion: msmt.SoftwareVersion,
		NetworkType:     msmt.Annotations.NetworkType,
		Platform:        msmt.Annotations.Platform,
		Origin:          msmt.Annotations.Origin,
	}

	if probeAS := resolver.LookupASN(ts, asn); probeAS != nil {
		base.ProbeASOrgName = probeAS.ASOrgName
		base.ProbeASCC = probeAS.ASCC
	}

	resolverIP := msmt.ResolverIP
	if resolverIP == "" {
		resolverIP = msmt.ClientResolver()
	}
	if resolverIP != "" {
		if info := resolver.LookupIP(ts, resolverIP); info != nil {
			base.ResolverIP = resolverIP
			base.ResolverASN = info.AS.ASN
			base.ResolverASOrgName = info.AS.ASOrgName
			base.ResolverASCC = info.AS.ASCC
			base.ResolverCC = info.CC
		}
	}

	return &Builder{msmt: msmt, netinfo: resolver, fpdb: fpdb, base: base}, nil
}

// nextBase stamps a fresh observation id and applies the per-record relative
// timestamp offset, in seconds since measurement start.
func (b *Builder) nextBase(target string, t float64) Base {
	base := b.base
	base.ObservationID = fmt.Sprintf("%s_%d", b.msmt.MeasurementUID, b.sequence)
	b.sequence++
	base.Target = target
	if t != 0 {
		base.Timestamp = base.Timestamp.Add(time.Duration(t * float64(time.Second)))
	}
	return base
}

func failureString(f measurement.Failure) string {
	if f == nil {
		return ""
	}
	return *f
}
