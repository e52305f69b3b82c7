package observations

import (
	"github.com/probewatch/probewatch/datautil"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/store"
)

type TCPObservation struct {
	Base

	DomainName string
	DomainApex string

	IP   string
	Port int

	IPASN       int
	IPASOrgName string
	IPASCC      string
	IPCC        string

	Failure string
}

func (o *TCPObservation) TableName() string { return "obs_tcp" }

func (o *TCPObservation) Row() store.Row {
	return append(o.baseRow(), store.Row{
		{"domain_name", o.DomainName},
		{"domain_apex", o.DomainApex},
		{"ip", o.IP},
		{"port", o.Port},
		{"ip_asn", o.IPASN},
		{"ip_as_org_name", o.IPASOrgName},
		{"ip_as_cc", o.IPASCC},
		{"ip_cc", o.IPCC},
		{"failure", o.Failure},
	}...)
}

// TCP builds one observation per connect attempt. The target domain is
// recovered through the ip→domain map assembled during the session's DNS
// stage; an empty map is valid and yields an empty domain.
func (b *Builder) TCP(connects []measurement.TCPConnect, ipToDomain map[string]string, target string) []*TCPObservation {
	var out []*TCPObservation
	for _, res := range connects {
		obs := &TCPObservation{
			Base:       b.nextBase(target, res.T),
			IP:         res.IP,
			Port:       res.Port,
			Failure:    failureString(res.Status.Failure),
			DomainName: ipToDomain[res.IP],
		}
		obs.DomainApex = datautil.Apex(obs.DomainName)

		if info := b.netinfo.LookupIP(obs.Timestamp, res.IP); info != nil {
			obs.IPASN = info.AS.ASN
			obs.IPASOrgName = info.AS.ASOrgName
			obs.IPASCC = info.AS.ASCC
			obs.IPCC = info.CC
		}
		out = append(out, obs)
	}
	return out
}
