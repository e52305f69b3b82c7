package measurement

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

const StartTimeLayout = "2006-01-02 15:04:05"

// Failure is the error string reported by a probe for a single operation. A
// nil value means the operation succeeded.
type Failure *string

// MaybeBinaryData holds a value that probes serialize either as a plain JSON
// string or as {"format": "base64", "data": "..."} when it is not valid UTF-8.
type MaybeBinaryData struct {
	Value []byte
}

type binaryData struct {
	Format string `json:"format"`
	Data   string `json:"data"`
}

func (m *MaybeBinaryData) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m.Value = []byte(s)
		return nil
	}
	var bd binaryData
	if err := json.Unmarshal(b, &bd); err != nil {
		return err
	}
	if bd.Format != "base64" {
		return errors.Errorf("unsupported binary data format '%s'", bd.Format)
	}
	raw, err := base64.StdEncoding.DecodeString(bd.Data)
	if err != nil {
		return errors.Wrap(err, "decode base64 data")
	}
	m.Value = raw
	return nil
}

func (m MaybeBinaryData) MarshalJSON() ([]byte, error) {
	return json.Marshal(binaryData{Format: "base64", Data: base64.StdEncoding.EncodeToString(m.Value)})
}

// HeaderPair is a single [name, value] entry of a headers_list.
type HeaderPair struct {
	Key   string
	Value MaybeBinaryData
}

func (h *HeaderPair) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return errors.Errorf("header pair has %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &h.Key); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &h.Value)
}

type Annotations struct {
	NetworkType string `json:"network_type"`
	Platform    string `json:"platform"`
	Origin      string `json:"origin"`
}

// Measurement is the envelope shared by every nettest. The test_keys are kept
// raw and decoded per nettest by the typed accessors below.
type Measurement struct {
	MeasurementUID       string          `json:"measurement_uid"`
	ReportID             string          `json:"report_id"`
	Input                string          `json:"input"`
	MeasurementStartTime string          `json:"measurement_start_time"`
	TestName             string          `json:"test_name"`
	TestVersion          string          `json:"test_version"`
	ProbeASN             string          `json:"probe_asn"`
	ProbeCC              string          `json:"probe_cc"`
	ResolverIP           string          `json:"resolver_ip"`
	SoftwareName         string          `json:"software_name"`
	SoftwareVersion      string          `json:"software_version"`
	Annotations          Annotations     `json:"annotations"`
	TestKeys             json.RawMessage `json:"test_keys"`
}

// StartTime parses the probe-reported measurement start time.
func (m *Measurement) StartTime() (time.Time, error) {
	return time.Parse(StartTimeLayout, m.MeasurementStartTime)
}

// ProbeASNumber strips the "AS" prefix and returns the numeric ASN.
func (m *Measurement) ProbeASNumber() (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(m.ProbeASN, "AS"))
	if err != nil {
		return 0, errors.Wrapf(err, "malformed probe_asn '%s'", m.ProbeASN)
	}
	return n, nil
}

func Load(raw []byte) (*Measurement, error) {
	var m Measurement
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal measurement")
	}
	return &m, nil
}

type DNSAnswer struct {
	AnswerType string `json:"answer_type"`
	IPv4       string `json:"ipv4"`
	IPv6       string `json:"ipv6"`
	Hostname   string `json:"hostname"`
	TTL        *int   `json:"ttl"`
}

type DNSQuery struct {
	Engine    string      `json:"engine"`
	QueryType string      `json:"query_type"`
	Hostname  string      `json:"hostname"`
	T         float64     `json:"t"`
	Failure   Failure     `json:"failure"`
	Answers   []DNSAnswer `json:"answers"`
}

type HTTPRequest struct {
	URL             string           `json:"url"`
	Method          string           `json:"method"`
	HeadersList     []HeaderPair     `json:"headers_list"`
	Body            *MaybeBinaryData `json:"body"`
	BodyIsTruncated bool             `json:"body_is_truncated"`
	XTransport      string           `json:"x_transport"`
}

type HTTPResponse struct {
	Code            int              `json:"code"`
	HeadersList     []HeaderPair     `json:"headers_list"`
	Body            *MaybeBinaryData `json:"body"`
	BodyIsTruncated bool             `json:"body_is_truncated"`
}

type HTTPTransaction struct {
	T        float64       `json:"t"`
	Failure  Failure       `json:"failure"`
	Request  *HTTPRequest  `json:"request"`
	Response *HTTPResponse `json:"response"`
}

type TCPStatus struct {
	Failure Failure `json:"failure"`
	Success bool    `json:"success"`
}

type TCPConnect struct {
	IP     string    `json:"ip"`
	Port   int       `json:"port"`
	T      float64   `json:"t"`
	Status TCPStatus `json:"status"`
}

type TLSHandshake struct {
	Address            string            `json:"address"`
	CipherSuite        string            `json:"cipher_suite"`
	Failure            Failure           `json:"failure"`
	NegotiatedProtocol string            `json:"negotiated_protocol"`
	NoTLSVerify        bool              `json:"no_tls_verify"`
	PeerCertificates   []MaybeBinaryData `json:"peer_certificates"`
	ServerName         string            `json:"server_name"`
	T                  float64           `json:"t"`
	TLSVersion         string            `json:"tls_version"`
}

type NetworkEvent struct {
	Address   string  `json:"address"`
	Failure   Failure `json:"failure"`
	NumBytes  int     `json:"num_bytes"`
	Operation string  `json:"operation"`
	Proto     string  `json:"proto"`
	T         float64 `json:"t"`
}

// WebConnectivityKeys are the test_keys of the web_connectivity nettest.
type WebConnectivityKeys struct {
	ClientResolver string            `json:"client_resolver"`
	Queries        []DNSQuery        `json:"queries"`
	Requests       []HTTPTransaction `json:"requests"`
	TCPConnect     []TCPConnect      `json:"tcp_connect"`
	TLSHandshakes  []TLSHandshake    `json:"tls_handshakes"`
	NetworkEvents  []NetworkEvent    `json:"network_events"`
}

// DNSCheckLookup is one resolver lookup of the dnscheck nettest.
type DNSCheckLookup struct {
	Queries       []DNSQuery        `json:"queries"`
	Requests      []HTTPTransaction `json:"requests"`
	TCPConnect    []TCPConnect      `json:"tcp_connect"`
	TLSHandshakes []TLSHandshake    `json:"tls_handshakes"`
	NetworkEvents []NetworkEvent    `json:"network_events"`
}

type DNSCheckBootstrap struct {
	Queries []DNSQuery `json:"queries"`
}

type DNSCheckKeys struct {
	ClientResolver string                    `json:"client_resolver"`
	Bootstrap      *DNSCheckBootstrap        `json:"bootstrap"`
	Lookups        map[string]DNSCheckLookup `json:"lookups"`
}

// TorTarget is the per-target sub-measurement of the tor nettest.
type TorTarget struct {
	Queries       []DNSQuery        `json:"queries"`
	Requests      []HTTPTransaction `json:"requests"`
	TCPConnect    []TCPConnect      `json:"tcp_connect"`
	TLSHandshakes []TLSHandshake    `json:"tls_handshakes"`
	NetworkEvents []NetworkEvent    `json:"network_events"`
}

type TorKeys struct {
	ClientResolver string               `json:"client_resolver"`
	Targets        map[string]TorTarget `json:"targets"`
}

func (m *Measurement) WebConnectivityKeys() (*WebConnectivityKeys, error) {
	var tk WebConnectivityKeys
	if err := json.Unmarshal(m.TestKeys, &tk); err != nil {
		return nil, errors.Wrap(err, "unmarshal web_connectivity test_keys")
	}
	return &tk, nil
}

func (m *Measurement) DNSCheckKeys() (*DNSCheckKeys, error) {
	var tk DNSCheckKeys
	if err := json.Unmarshal(m.TestKeys, &tk); err != nil {
		return nil, errors.Wrap(err, "unmarshal dnscheck test_keys")
	}
	return &tk, nil
}

func (m *Measurement) TorKeys() (*TorKeys, error) {
	var tk TorKeys
	if err := json.Unmarshal(m.TestKeys, &tk); err != nil {
		return nil, errors.Wrap(err, "unmarshal tor test_keys")
	}
	return &tk, nil
}

// ClientResolver extracts the client_resolver test key regardless of nettest.
func (m *Measurement) ClientResolver() string {
	var tk struct {
		ClientResolver string `json:"client_resolver"`
	}
	if err := json.Unmarshal(m.TestKeys, &tk); err != nil {
		return ""
	}
	return tk.ClientResolver
}

// NormalizeQueryType upper-cases a query type and verifies it denotes a known
// DNS record type. Unknown types are returned as-is so that malformed input
// still round-trips into the observation row.
func NormalizeQueryType(qtype string) string {
	normalized := strings.ToUpper(qtype)
	if _, ok := dns.StringToType[normalized]; ok {
		return normalized
	}
	return qtype
}
