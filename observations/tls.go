package observations

import (
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/probewatch/probewatch/datautil"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/store"
)

// Certificate failures that imply the handshake reached a server presenting
// a certificate we could judge.
var certValidationFailures = map[string]bool{
	"ssl_invalid_hostname":    true,
	"ssl_unknown_authority":   true,
	"ssl_invalid_certificate": true,
}

type TLSObservation struct {
	Base

	DomainName string
	DomainApex string
	ServerName string

	IP   string
	Port int

	IPASN       int
	IPASOrgName string
	IPASCC      string
	IPCC        string

	Failure string

	TLSVersion  string
	CipherSuite string

	IsCertificateValid *bool

	EndEntityCertificateFingerprint       string
	EndEntityCertificateSubject           string
	EndEntityCertificateSubjectCommonName string
	EndEntityCertificateIssuer            string
	EndEntityCertificateIssuerCommonName  string
	EndEntityCertificateSANList           []string
	EndEntityCertificateNotValidBefore    string
	EndEntityCertificateNotValidAfter     string
	CertificateChainLength                int

	HandshakeReadCount     int
	HandshakeWriteCount    int
	HandshakeReadBytes     float64
	HandshakeWriteBytes    float64
	HandshakeLastOperation string
	HandshakeTime          float64
}

func (o *TLSObservation) TableName() string { return "obs_tls" }

func (o *TLSObservation) Row() store.Row {
	return append(o.baseRow(), store.Row{
		{"domain_name", o.DomainName},
		{"domain_apex", o.DomainApex},
		{"server_name", o.ServerName},
		{"ip", o.IP},
		{"port", o.Port},
		{"ip_asn", o.IPASN},
		{"ip_as_org_name", o.IPASOrgName},
		{"ip_as_cc", o.IPASCC},
		{"ip_cc", o.IPCC},
		{"tls_version", o.TLSVersion},
		{"cipher_suite", o.CipherSuite},
		{"is_certificate_valid", o.IsCertificateValid},
		{"end_entity_certificate_fingerprint", o.EndEntityCertificateFingerprint},
		{"end_entity_certificate_subject", o.EndEntityCertificateSubject},
		{"end_entity_certificate_subject_common_name", o.EndEntityCertificateSubjectCommonName},
		{"end_entity_certificate_issuer", o.EndEntityCertificateIssuer},
		{"end_entity_certificate_issuer_common_name", o.EndEntityCertificateIssuerCommonName},
		{"end_entity_certificate_san_list", o.EndEntityCertificateSANList},
		{"end_entity_certificate_not_valid_before", o.EndEntityCertificateNotValidBefore},
		{"end_entity_certificate_not_valid_after", o.EndEntityCertificateNotValidAfter},
		{"certificate_chain_length", o.CertificateChainLength},
		{"tls_handshake_read_count", o.HandshakeReadCount},
		{"tls_handshake_write_count", o.HandshakeWriteCount},
		{"tls_handshake_read_bytes", o.HandshakeReadBytes},
		{"tls_handshake_write_bytes", o.HandshakeWriteBytes},
		{"tls_handshake_last_operation", o.HandshakeLastOperation},
		{"tls_handshake_time", o.HandshakeTime},
		{"failure", o.Failure},
	}...)
}

func splitAddress(address string) (string, int) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return address, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// TLS builds one observation per handshake. The endpoint is taken from the
// handshake record when present and recovered through event correlation
// otherwise; when correlation succeeds, the handshake byte/operation counters
// are accumulated from the correlated window.
func (b *Builder) TLS(handshakes []measurement.TLSHandshake, events []measurement.NetworkEvent, ipToDomain map[string]string, target string) []*TLSObservation {
	var out []*TLSObservation
	for _, h := range handshakes {
		obs := &TLSObservation{
			Base:        b.nextBase(target, h.T),
			ServerName:  h.ServerName,
			DomainName:  h.ServerName,
			DomainApex:  datautil.Apex(h.ServerName),
			TLSVersion:  h.TLSVersion,
			CipherSuite: h.CipherSuite,
			Failure:     failureString(h.Failure),
		}

		if !h.NoTLSVerify {
			if certValidationFailures[obs.Failure] {
				valid := false
				obs.IsCertificateValid = &valid
			} else if obs.Failure == "" {
				valid := true
				obs.IsCertificateValid = &valid
			}
		}

		if h.Address != "" {
			obs.IP, obs.Port = splitAddress(h.Address)
		}

		if window := FindTLSHandshakeEvents(h, events); window != nil {
			if obs.IP == "" {
				obs.IP, obs.Port = splitAddress(window[0].Address)
			}
			obs.DomainName = ipToDomain[obs.IP]
			obs.DomainApex = datautil.Apex(obs.DomainName)

			obs.HandshakeTime = window[len(window)-1].T - window[0].T
			for _, ne := range window {
				switch ne.Operation {
				case "write":
					if ne.NumBytes > 0 {
						obs.HandshakeWriteCount++
						obs.HandshakeWriteBytes += float64(ne.NumBytes)
					}
					obs.HandshakeLastOperation = fmt.Sprintf("write_%d", obs.HandshakeWriteCount)
				case "read":
					if ne.NumBytes > 0 {
						obs.HandshakeReadCount++
						obs.HandshakeReadBytes += float64(ne.NumBytes)
						obs.HandshakeLastOperation = fmt.Sprintf("read_%d", obs.HandshakeReadCount)
					}
				}
			}
		}

		if obs.IP != "" {
			if info := b.netinfo.LookupIP(obs.Timestamp, obs.IP); info != nil {
				obs.IPASN = info.AS.ASN
				obs.IPASOrgName = info.AS.ASOrgName
				obs.IPASCC = info.AS.ASCC
				obs.IPCC = info.CC
			}
		}

		if len(h.PeerCertificates) > 0 {
			obs.CertificateChainLength = len(h.PeerCertificates)
			meta, err := datautil.GetCertificateMeta(h.PeerCertificates[0].Value)
			if err != nil {
				log.Warn().Msgf("failed to decode peer certificate of %s: %s", obs.ObservationID, err)
			} else {
				obs.EndEntityCertificateFingerprint = meta.Fingerprint
				obs.EndEntityCertificateSubject = meta.Subject
				obs.EndEntityCertificateSubjectCommonName = meta.SubjectCommonName
				obs.EndEntityCertificateIssuer = meta.Issuer
				obs.EndEntityCertificateIssuerCommonName = meta.IssuerCommonName
				obs.EndEntityCertificateSANList = meta.SANList
				obs.EndEntityCertificateNotValidBefore = meta.NotValidBefore.Format(measurement.StartTimeLayout)
				obs.EndEntityCertificateNotValidAfter = meta.NotValidAfter.Format(measurement.StartTimeLayout)
			}
		}

		out = append(out, obs)
	}
	return out
}
