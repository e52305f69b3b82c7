package observations

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/probewatch/probewatch/measurement"
)

// FieldNames returns the ordered column list of an observation variant. The
// verdict engine uses it to build SELECT statements that match Row() order.
func FieldNames(o Observation) []string {
	return o.Row().Names()
}

// rowReader reads column values by name, tolerating the loosely typed values
// different store backends hand back.
type rowReader struct {
	fields map[string]interface{}
	err    error
}

func newRowReader(names []string, values []interface{}) (*rowReader, error) {
	if len(names) != len(values) {
		return nil, errors.Errorf("row has %d values for %d columns", len(values), len(names))
	}
	fields := make(map[string]interface{}, len(names))
	for i, n := range names {
		fields[n] = values[i]
	}
	return &rowReader{fields: fields}, nil
}

func (r *rowReader) str(name string) string {
	switch v := r.fields[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	r.err = errors.Errorf("column %s is not a string", name)
	return ""
}

func (r *rowReader) integer(name string) int {
	switch v := r.fields[name].(type) {
	case nil:
		return 0
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err == nil {
			return n
		}
	}
	r.err = errors.Errorf("column %s is not an integer", name)
	return 0
}

func (r *rowReader) float(name string) float64 {
	switch v := r.fields[name].(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		if err == nil {
			return f
		}
	}
	r.err = errors.Errorf("column %s is not a float", name)
	return 0
}

func (r *rowReader) boolean(name string) bool {
	switch v := r.fields[name].(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v == "t" || v == "true" || v == "1"
	case []byte:
		s := string(v)
		return s == "t" || s == "true" || s == "1"
	}
	r.err = errors.Errorf("column %s is not a bool", name)
	return false
}

func (r *rowReader) boolPtr(name string) *bool {
	if r.fields[name] == nil {
		return nil
	}
	b := r.boolean(name)
	return &b
}

func (r *rowReader) timestamp(name string) time.Time {
	switch v := r.fields[name].(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v
	case string:
		t, err := time.Parse(measurement.StartTimeLayout, v)
		if err == nil {
			return t
		}
	case []byte:
		t, err := time.Parse(measurement.StartTimeLayout, string(v))
		if err == nil {
			return t
		}
	}
	r.err = errors.Errorf("column %s is not a timestamp", name)
	return time.Time{}
}

func (r *rowReader) stringList(name string) []string {
	switch v := r.fields[name].(type) {
	case nil:
		return nil
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return strings.Split(v, ",")
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return strings.Split(string(v), ",")
	}
	r.err = errors.Errorf("column %s is not a string list", name)
	return nil
}

func (r *rowReader) base() Base {
	return Base{
		MeasurementUID:    r.str("measurement_uid"),
		ObservationID:     r.str("observation_id"),
		ReportID:          r.str("report_id"),
		Timestamp:         r.timestamp("timestamp"),
		Target:            r.str("target"),
		ProbeASN:          r.integer("probe_asn"),
		ProbeCC:           r.str("probe_cc"),
		ProbeASOrgName:    r.str("probe_as_org_name"),
		ProbeASCC:         r.str("probe_as_cc"),
		ResolverIP:        r.str("resolver_ip"),
		ResolverASN:       r.integer("resolver_asn"),
		ResolverCC:        r.str("resolver_cc"),
		ResolverASOrgName: r.str("resolver_as_org_name"),
		ResolverASCC:      r.str("resolver_as_cc"),
		SoftwareName:      r.str("software_name"),
		SoftwareVersion:   r.str("software_version"),
		NetworkType:       r.str("network_type"),
		Platform:          r.str("platform"),
		Origin:            r.str("origin"),
	}
}

// DNSObservationFromRow rebuilds a DNS observation from a persisted row.
func DNSObservationFromRow(names []string, values []interface{}) (*DNSObservation, error) {
	r, err := newRowReader(names, values)
	if err != nil {
		return nil, err
	}
	o := &DNSObservation{
		Base:                         r.base(),
		DomainName:                   r.str("domain_name"),
		DomainApex:                   r.str("domain_apex"),
		QueryType:                    r.str("query_type"),
		AnswerType:                   r.str("answer_type"),
		Answer:                       r.str("answer"),
		AnswerASN:                    r.integer("answer_asn"),
		AnswerASOrgName:              r.str("answer_as_org_name"),
		AnswerASCC:                   r.str("answer_as_cc"),
		AnswerCC:                     r.str("answer_cc"),
		AnswerIsBogon:                r.boolean("answer_is_bogon"),
		FingerprintID:                r.str("fingerprint_id"),
		FingerprintCountryConsistent: r.boolPtr("fingerprint_country_consistent"),
		IsTLSConsistent:              r.boolPtr("is_tls_consistent"),
		Failure:                      r.str("failure"),
	}
	return o, r.err
}

// TCPObservationFromRow rebuilds a TCP observation from a persisted row.
func TCPObservationFromRow(names []string, values []interface{}) (*TCPObservation, error) {
	r, err := newRowReader(names, values)
	if err != nil {
		return nil, err
	}
	o := &TCPObservation{
		Base:        r.base(),
		DomainName:  r.str("domain_name"),
		DomainApex:  r.str("domain_apex"),
		IP:          r.str("ip"),
		Port:        r.integer("port"),
		IPASN:       r.integer("ip_asn"),
		IPASOrgName: r.str("ip_as_org_name"),
		IPASCC:      r.str("ip_as_cc"),
		IPCC:        r.str("ip_cc"),
		Failure:     r.str("failure"),
	}
	return o, r.err
}

// TLSObservationFromRow rebuilds a TLS observation from a persisted row.
func TLSObservationFromRow(names []string, values []interface{}) (*TLSObservation, error) {
	r, err := newRowReader(names, values)
	if err != nil {
		return nil, err
	}
	o := &TLSObservation{
		Base:                                  r.base(),
		DomainName:                            r.str("domain_name"),
		DomainApex:                            r.str("domain_apex"),
		ServerName:                            r.str("server_name"),
		IP:                                    r.str("ip"),
		Port:                                  r.integer("port"),
		IPASN:                                 r.integer("ip_asn"),
		IPASOrgName:                           r.str("ip_as_org_name"),
		IPASCC:                                r.str("ip_as_cc"),
		IPCC:                                  r.str("ip_cc"),
		TLSVersion:                            r.str("tls_version"),
		CipherSuite:                           r.str("cipher_suite"),
		IsCertificateValid:                    r.boolPtr("is_certificate_valid"),
		EndEntityCertificateFingerprint:       r.str("end_entity_certificate_fingerprint"),
		EndEntityCertificateSubject:           r.str("end_entity_certificate_subject"),
		EndEntityCertificateSubjectCommonName: r.str("end_entity_certificate_subject_common_name"),
		EndEntityCertificateIssuer:            r.str("end_entity_certificate_issuer"),
		EndEntityCertificateIssuerCommonName:  r.str("end_entity_certificate_issuer_common_name"),
		EndEntityCertificateSANList:           r.stringList("end_entity_certificate_san_list"),
		EndEntityCertificateNotValidBefore:    r.str("end_entity_certificate_not_valid_before"),
		EndEntityCertificateNotValidAfter:     r.str("end_entity_certificate_not_valid_after"),
		CertificateChainLength:                r.integer("certificate_chain_length"),
		HandshakeReadCount:                    r.integer("tls_handshake_read_count"),
		HandshakeWriteCount:                   r.integer("tls_handshake_write_count"),
		HandshakeReadBytes:                    r.float("tls_handshake_read_bytes"),
		HandshakeWriteBytes:                   r.float("tls_handshake_write_bytes"),
		HandshakeLastOperation:                r.str("tls_handshake_last_operation"),
		HandshakeTime:                         r.float("tls_handshake_time"),
		Failure:                               r.str("failure"),
	}
	return o, r.err
}

// HTTPObservationFromRow rebuilds an HTTP observation from a persisted row.
func HTTPObservationFromRow(names []string, values []interface{}) (*HTTPObservation, error) {
	r, err := newRowReader(names, values)
	if err != nil {
		return nil, err
	}
	o := &HTTPObservation{
		Base:                         r.base(),
		DomainName:                   r.str("domain_name"),
		DomainApex:                   r.str("domain_apex"),
		RequestURL:                   r.str("request_url"),
		RequestIsEncrypted:           r.boolean("request_is_encrypted"),
		RequestRedirectFrom:          r.str("request_redirect_from"),
		RequestBodyLength:            r.integer("request_body_length"),
		RequestBodyIsTruncated:       r.boolean("request_body_is_truncated"),
		RequestMethod:                r.str("request_method"),
		XTransport:                   r.str("x_transport"),
		ResponseStatusCode:           r.integer("response_status_code"),
		ResponseBodyLength:           r.integer("response_body_length"),
		ResponseBodyIsTruncated:      r.boolean("response_body_is_truncated"),
		ResponseBodySHA1:             r.str("response_body_sha1"),
		ResponseBodyTitle:            r.str("response_body_title"),
		ResponseBodyMetaTitle:        r.str("response_body_meta_title"),
		ResponseHeaderLocation:       r.str("response_header_location"),
		ResponseHeaderServer:         r.str("response_header_server"),
		ResponseFingerprints:         r.stringList("response_fingerprints"),
		FingerprintCountryConsistent: r.boolPtr("fingerprint_country_consistent"),
		ResponseMatchesBlockpage:     r.boolean("response_matches_blockpage"),
		ResponseMatchesFalsePositive: r.boolean("response_matches_false_positive"),
		Failure:                      r.str("failure"),
	}
	return o, r.err
}
