package verdicts

import (
	"math"
	"testing"
	"time"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/observations"
)

// stubResolver serves canned IP lookups.
type stubResolver struct {
	ips map[string]*netinfo.IPInfo
}

func (r *stubResolver) LookupIP(ts time.Time, ip string) *netinfo.IPInfo {
	return r.ips[ip]
}

func (r *stubResolver) LookupASN(ts time.Time, asn int) *netinfo.ASInfo {
	return nil
}

func testBase(id string) observations.Base {
	return observations.Base{
		MeasurementUID: "20220107222458.184469_IT_webconnectivity_abc",
		ObservationID:  "20220107222458.184469_IT_webconnectivity_abc_" + id,
		ReportID:       "20220107T222039Z_webconnectivity_IT_12874_n1_x",
		Timestamp:      time.Date(2022, 1, 7, 22, 24, 58, 0, time.UTC),
		ProbeASN:       12874,
		ProbeCC:        "IT",
	}
}

// vantages builds n distinct vantage points none of which is the test probe.
func vantages(n int) []ccASN {
	out := make([]ccASN, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ccASN{"US", 1000 + i})
	}
	return out
}

func TestRemoveOne(t *testing.T) {
	own := ccASN{"IT", 12874}
	list := []ccASN{{"US", 1000}, own, {"DE", 2000}, own}

	out := removeOne(list, own)
	if len(out) != 3 {
		t.Fatalf("expected only the first occurrence removed, but got %v", out)
	}
	out = removeOne([]ccASN{{"US", 1000}}, own)
	if len(out) != 1 {
		t.Fatalf("expected a no-op when the vantage point is absent, but got %v", out)
	}
}

func TestMakeWebsiteTCPVerdictOK(t *testing.T) {
	obs := &observations.TCPObservation{Base: testBase("0"), IP: "1.2.3.4", Port: 443}
	if v := MakeWebsiteTCPVerdict(obs, &TCPBaseline{}); v != nil {
		t.Fatalf("expected nil verdict for successful connect, but got %+v", v)
	}
}

func TestMakeWebsiteTCPVerdictBlocked(t *testing.T) {
	obs := &observations.TCPObservation{
		Base:       testBase("0"),
		DomainName: "example.com",
		IP:         "1.2.3.4",
		Port:       443,
		Failure:    "connection_reset",
	}
	baseline := &TCPBaseline{
		ReachableCCASN:   vantages(4),
		UnreachableCCASN: []ccASN{{"IT", 12874}, {"RU", 3000}},
	}
	v := MakeWebsiteTCPVerdict(obs, baseline)
	if v == nil {
		t.Fatalf("expected a verdict")
	}
	if v.Outcome != OutcomeBlocked {
		t.Fatalf("expected outcome b, but got %s", v.Outcome)
	}
	if expected := 4.0 / 6.0; v.Confidence != expected {
		t.Fatalf("expected confidence %f, but got %f", expected, v.Confidence)
	}
	if v.OutcomeDetail != "tcp.connection_reset" {
		t.Fatalf("expected tcp.connection_reset, but got %s", v.OutcomeDetail)
	}
	if v.SubjectDetail != "1.2.3.4:443" {
		t.Fatalf("expected subject detail 1.2.3.4:443, but got %s", v.SubjectDetail)
	}
}

func TestMakeWebsiteTCPVerdictDown(t *testing.T) {
	obs := &observations.TCPObservation{
		Base:    testBase("0"),
		IP:      "1.2.3.4",
		Port:    443,
		Failure: "generic_timeout_error",
	}
	baseline := &TCPBaseline{
		ReachableCCASN:   vantages(1),
		UnreachableCCASN: append(vantages(3), ccASN{"IT", 12874}),
	}
	v := MakeWebsiteTCPVerdict(obs, baseline)
	if v == nil {
		t.Fatalf("expected a verdict")
	}
	if v.Outcome != OutcomeDown {
		t.Fatalf("expected outcome d, but got %s", v.Outcome)
	}
	if expected := 4.0 / 5.0; v.Confidence != expected {
		t.Fatalf("expected confidence %f, but got %f", expected, v.Confidence)
	}
}

func TestMakeWebsiteTCPVerdictTied(t *testing.T) {
	obs := &observations.TCPObservation{
		Base:    testBase("0"),
		IP:      "1.2.3.4",
		Port:    443,
		Failure: "connection_reset",
	}
	baseline := &TCPBaseline{
		ReachableCCASN:   vantages(2),
		UnreachableCCASN: vantages(2),
	}
	if v := MakeWebsiteTCPVerdict(obs, baseline); v != nil {
		t.Fatalf("expected nil verdict for a tie, but got %+v", v)
	}
}

func TestMakeWebsiteDNSVerdictBlockpage(t *testing.T) {
	fpdb := fingerprints.New([]*fingerprints.Fingerprint{
		{Name: "dns.it.censor", Scope: "nat", LocationFound: "dns", Pattern: "83.224.65.41", ExpectedCountries: []string{"IT"}},
		{Name: "dns.ir.censor", Scope: "nat", LocationFound: "dns", Pattern: "10.10.34.35", ExpectedCountries: []string{"IR"}},
	})

	obs := &observations.DNSObservation{
		Base:          testBase("0"),
		DomainName:    "example.com",
		Answer:        "83.224.65.41",
		FingerprintID: "dns.it.censor",
	}
	v := MakeWebsiteDNSVerdict(obs, &DNSBaseline{}, fpdb, &stubResolver{})
	if v == nil || v.Outcome != OutcomeBlocked || v.OutcomeDetail != "dns.blockpage" {
		t.Fatalf("expected dns.blockpage verdict, but got %+v", v)
	}
	if v.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, but got %f", v.Confidence)
	}

	// the same signature seen outside its expected countries is less credible
	obs.FingerprintID = "dns.ir.censor"
	obs.Answer = "10.10.34.35"
	v = MakeWebsiteDNSVerdict(obs, &DNSBaseline{}, fpdb, &stubResolver{})
	if v == nil || v.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7 for unexpected country, but got %+v", v)
	}
}

func TestMakeWebsiteDNSVerdictBogon(t *testing.T) {
	obs := &observations.DNSObservation{
		Base:          testBase("0"),
		DomainName:    "example.com",
		Answer:        "127.0.0.1",
		AnswerIsBogon: true,
	}
	baseline := &DNSBaseline{TLSConsistentAnswers: []string{"93.184.216.34"}}
	v := MakeWebsiteDNSVerdict(obs, baseline, fingerprints.New(nil), &stubResolver{})
	if v == nil || v.OutcomeDetail != "dns.bogon" || v.Confidence != 0.9 {
		t.Fatalf("expected dns.bogon with confidence 0.9, but got %+v", v)
	}
	if v.Outcome != OutcomeBlocked {
		t.Fatalf("expected outcome b, but got %s", v.Outcome)
	}
}

func TestMakeWebsiteDNSVerdictNXDomain(t *testing.T) {
	baseline := &DNSBaseline{
		OKCCASN:       vantages(5),
		FailureCCASN:  append(vantages(1), ccASN{"IT", 12874}),
		NXDomainCCASN: append(vantages(1), ccASN{"IT", 12874}),
	}
	obs := &observations.DNSObservation{
		Base:       testBase("0"),
		DomainName: "example.com",
		Failure:    "dns_nxdomain_error",
	}
	v := MakeWebsiteDNSVerdict(obs, baseline, fingerprints.New(nil), &stubResolver{})
	if v == nil || v.OutcomeDetail != "dns.nxdomain" {
		t.Fatalf("expected dns.nxdomain verdict, but got %+v", v)
	}
	if v.Outcome != OutcomeBlocked {
		t.Fatalf("expected outcome b, but got %s", v.Outcome)
	}
	// 5/7 * 1.5 exceeds the cap
	if v.Confidence != 0.8 {
		t.Fatalf("expected capped confidence 0.8, but got %f", v.Confidence)
	}

	// when most of the fleet sees NXDOMAIN too, the domain is just gone
	baseline = &DNSBaseline{
		OKCCASN:       vantages(1),
		FailureCCASN:  vantages(3),
		NXDomainCCASN: vantages(3),
	}
	v = MakeWebsiteDNSVerdict(obs, baseline, fingerprints.New(nil), &stubResolver{})
	if v == nil || v.Outcome != OutcomeDown {
		t.Fatalf("expected outcome d, but got %+v", v)
	}
	if expected := 4.0 / 5.0; v.Confidence != expected {
		t.Fatalf("expected confidence %f, but got %f", expected, v.Confidence)
	}
}

func TestMakeWebsiteDNSVerdictFailure(t *testing.T) {
	baseline := &DNSBaseline{
		OKCCASN:      vantages(4),
		FailureCCASN: []ccASN{{"IT", 12874}},
	}
	obs := &observations.DNSObservation{
		Base:       testBase("0"),
		DomainName: "example.com",
		Failure:    "generic_timeout_error",
	}
	v := MakeWebsiteDNSVerdict(obs, baseline, fingerprints.New(nil), &stubResolver{})
	if v == nil || v.Outcome != OutcomeBlocked || v.OutcomeDetail != "dns.generic_timeout_error" {
		t.Fatalf("expected blocked timeout verdict, but got %+v", v)
	}
	if expected := 4.0 / 5.0; v.Confidence != expected {
		t.Fatalf("expected confidence %f, but got %f", expected, v.Confidence)
	}
}

func TestMakeWebsiteDNSVerdictTLSInconsistent(t *testing.T) {
	inconsistent := false
	obs := &observations.DNSObservation{
		Base:            testBase("0"),
		DomainName:      "example.com",
		Answer:          "1.2.3.4",
		IsTLSConsistent: &inconsistent,
	}
	v := MakeWebsiteDNSVerdict(obs, &DNSBaseline{}, fingerprints.New(nil), &stubResolver{})
	if v == nil || v.OutcomeDetail != "dns.inconsistent" || v.Confidence != 0.8 {
		t.Fatalf("expected dns.inconsistent with confidence 0.8, but got %+v", v)
	}
}

func TestMakeWebsiteDNSVerdictTLSConsistent(t *testing.T) {
	consistent := true
	obs := &observations.DNSObservation{
		Base:            testBase("0"),
		DomainName:      "example.com",
		Answer:          "93.184.216.34",
		IsTLSConsistent: &consistent,
	}
	if v := MakeWebsiteDNSVerdict(obs, &DNSBaseline{}, fingerprints.New(nil), &stubResolver{}); v != nil {
		t.Fatalf("expected nil verdict for consistent answer, but got %+v", v)
	}
}

func TestMakeWebsiteDNSVerdictIPFallback(t *testing.T) {
	baseline := &DNSBaseline{TLSConsistentAnswers: []string{"93.184.216.34"}}
	resolver := &stubResolver{ips: map[string]*netinfo.IPInfo{
		"93.184.216.34": {AS: netinfo.ASInfo{ASN: 15133, ASOrgName: "EDGECAST"}},
	}}

	tests := []struct {
		name       string
		obs        *observations.DNSObservation
		confidence float64
	}{
		{
			"answer in probe network",
			&observations.DNSObservation{
				Base: testBase("0"), DomainName: "example.com",
				Answer: "5.6.7.8", AnswerASN: 12874, AnswerASCC: "DE",
			},
			0.8,
		},
		{
			"answer in probe country",
			&observations.DNSObservation{
				Base: testBase("0"), DomainName: "example.com",
				Answer: "5.6.7.8", AnswerASN: 7000, AnswerASCC: "IT",
			},
			0.7,
		},
		{
			"unrelated answer",
			&observations.DNSObservation{
				Base: testBase("0"), DomainName: "example.com",
				Answer: "5.6.7.8", AnswerASN: 7000, AnswerASCC: "DE",
			},
			0.5,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := MakeWebsiteDNSVerdict(test.obs, baseline, fingerprints.New(nil), resolver)
			if v == nil || v.OutcomeDetail != "dns.inconsistent" {
				t.Fatalf("expected dns.inconsistent verdict, but got %+v", v)
			}
			if v.Confidence != test.confidence {
				t.Fatalf("expected confidence %f, but got %f", test.confidence, v.Confidence)
			}
		})
	}

	// an answer in the same network as a TLS confirmed one scores high enough
	// to pass without a verdict
	obs := &observations.DNSObservation{
		Base: testBase("0"), DomainName: "example.com",
		Answer: "5.6.7.8", AnswerASN: 15133,
	}
	if v := MakeWebsiteDNSVerdict(obs, baseline, fingerprints.New(nil), resolver); v != nil {
		t.Fatalf("expected nil verdict for same-network answer, but got %+v", v)
	}
}

func TestMakeWebsiteTLSVerdictMITM(t *testing.T) {
	invalid := false
	obs := &observations.TLSObservation{
		Base:               testBase("1"),
		DomainName:         "example.com",
		IP:                 "1.2.3.4",
		Port:               443,
		IsCertificateValid: &invalid,
	}
	v := MakeWebsiteTLSVerdict(obs, nil)
	if v == nil || v.OutcomeDetail != "tls.mitm" || v.Confidence != 1 {
		t.Fatalf("expected tls.mitm with confidence 1, but got %+v", v)
	}

	// an already detected DNS level block on the same address explains the
	// bad certificate
	prev := []*Verdict{
		fromObservation(testBase("0"), 0.8, "example.com", "website", "1.2.3.4", OutcomeBlocked, "dns.inconsistent"),
	}
	if v := MakeWebsiteTLSVerdict(obs, prev); v != nil {
		t.Fatalf("expected suppression by dns verdict, but got %+v", v)
	}
}

func TestMakeWebsiteTLSVerdictFailure(t *testing.T) {
	tests := []struct {
		name       string
		obs        *observations.TLSObservation
		confidence float64
	}{
		{
			"plain failure",
			&observations.TLSObservation{
				Base: testBase("1"), DomainName: "example.com",
				IP: "1.2.3.4", Port: 443, Failure: "generic_timeout_error",
			},
			0.5,
		},
		{
			"connection reset",
			&observations.TLSObservation{
				Base: testBase("1"), DomainName: "example.com",
				IP: "1.2.3.4", Port: 443, Failure: "connection_reset",
				HandshakeReadCount: 2, HandshakeWriteCount: 2,
			},
			0.5 * 1.4,
		},
		{
			"reset right after the client hello",
			&observations.TLSObservation{
				Base: testBase("1"), DomainName: "example.com",
				IP: "1.2.3.4", Port: 443, Failure: "connection_reset",
				HandshakeReadCount: 0, HandshakeWriteCount: 1,
			},
			0.5 * 1.4 * 1.3,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := MakeWebsiteTLSVerdict(test.obs, nil)
			if v == nil || v.OutcomeDetail != "tls.connection_reset" && v.OutcomeDetail != "tls.generic_timeout_error" {
				t.Fatalf("expected tls failure verdict, but got %+v", v)
			}
			if math.Abs(v.Confidence-test.confidence) > 1e-9 {
				t.Fatalf("expected confidence %f, but got %f", test.confidence, v.Confidence)
			}
		})
	}
}

func TestMakeWebsiteTLSVerdictSuppressedByTCP(t *testing.T) {
	obs := &observations.TLSObservation{
		Base: testBase("1"), DomainName: "example.com",
		IP: "1.2.3.4", Port: 443, Failure: "connection_reset",
	}
	prev := []*Verdict{
		fromObservation(testBase("0"), 0.8, "example.com", "website", "1.2.3.4:443", OutcomeBlocked, "tcp.connection_reset"),
	}
	if v := MakeWebsiteTLSVerdict(obs, prev); v != nil {
		t.Fatalf("expected suppression by tcp verdict, but got %+v", v)
	}
}

func TestMakeWebsiteHTTPVerdictFailure(t *testing.T) {
	baseline := &HTTPBaseline{
		OKCCASN:      vantages(4),
		FailureCCASN: []ccASN{{"IT", 12874}},
	}
	obs := &observations.HTTPObservation{
		Base:       testBase("2"),
		DomainName: "example.com",
		RequestURL: "http://example.com/",
		Failure:    "connection_reset",
	}
	v := MakeWebsiteHTTPVerdict(obs, baseline, nil, fingerprints.New(nil))
	if v == nil || v.Outcome != OutcomeBlocked || v.OutcomeDetail != "http.connection_reset" {
		t.Fatalf("expected http failure verdict, but got %+v", v)
	}
	if expected := 4.0 / 5.0; v.Confidence != expected {
		t.Fatalf("expected confidence %f, but got %f", expected, v.Confidence)
	}

	obs.RequestIsEncrypted = true
	v = MakeWebsiteHTTPVerdict(obs, baseline, nil, fingerprints.New(nil))
	if v == nil || v.OutcomeDetail != "https.connection_reset" {
		t.Fatalf("expected https outcome detail, but got %+v", v)
	}
}

func TestMakeWebsiteHTTPVerdictFailureSuppression(t *testing.T) {
	baseline := &HTTPBaseline{OKCCASN: vantages(4)}
	dnsVerdict := fromObservation(testBase("0"), 0.8, "example.com", "website", "1.2.3.4", OutcomeBlocked, "dns.inconsistent")
	tcp80 := fromObservation(testBase("0"), 0.8, "example.com", "website", "1.2.3.4:80", OutcomeBlocked, "tcp.connection_reset")
	tlsVerdict := fromObservation(testBase("1"), 0.7, "example.com", "website", "1.2.3.4:443", OutcomeBlocked, "tls.connection_reset")

	plain := &observations.HTTPObservation{
		Base: testBase("2"), DomainName: "example.com",
		RequestURL: "http://example.com/", Failure: "connection_reset",
	}
	if v := MakeWebsiteHTTPVerdict(plain, baseline, []*Verdict{dnsVerdict}, fingerprints.New(nil)); v != nil {
		t.Fatalf("expected suppression by dns verdict, but got %+v", v)
	}
	if v := MakeWebsiteHTTPVerdict(plain, baseline, []*Verdict{tcp80}, fingerprints.New(nil)); v != nil {
		t.Fatalf("expected suppression by tcp verdict on :80, but got %+v", v)
	}
	// a TLS level block does not explain a plaintext failure
	if v := MakeWebsiteHTTPVerdict(plain, baseline, []*Verdict{tlsVerdict}, fingerprints.New(nil)); v == nil {
		t.Fatalf("expected a verdict despite the tls verdict")
	}

	encrypted := &observations.HTTPObservation{
		Base: testBase("2"), DomainName: "example.com",
		RequestURL: "https://example.com/", RequestIsEncrypted: true, Failure: "connection_reset",
	}
	if v := MakeWebsiteHTTPVerdict(encrypted, baseline, []*Verdict{tlsVerdict}, fingerprints.New(nil)); v != nil {
		t.Fatalf("expected suppression by tls verdict, but got %+v", v)
	}
	// a TCP block on :80 does not explain an https failure
	if v := MakeWebsiteHTTPVerdict(encrypted, baseline, []*Verdict{tcp80}, fingerprints.New(nil)); v == nil {
		t.Fatalf("expected a verdict despite the tcp verdict on :80")
	}
}

func TestMakeWebsiteHTTPVerdictBlockpage(t *testing.T) {
	fpdb := fingerprints.New([]*fingerprints.Fingerprint{
		{Name: "blocked.body", Scope: "isp", LocationFound: "body", Pattern: "denied"},
	})
	consistent := true

	obs := &observations.HTTPObservation{
		Base: testBase("2"), DomainName: "example.com",
		RequestURL:                   "http://example.com/",
		ResponseMatchesBlockpage:     true,
		ResponseFingerprints:         []string{"blocked.body"},
		FingerprintCountryConsistent: &consistent,
	}
	v := MakeWebsiteHTTPVerdict(obs, &HTTPBaseline{}, nil, fpdb)
	if v == nil || v.OutcomeDetail != "http.blockpage" {
		t.Fatalf("expected http.blockpage verdict, but got %+v", v)
	}
	if v.Confidence != 1 {
		t.Fatalf("expected confidence 1 for country consistent match, but got %f", v.Confidence)
	}
	if v.Outcome != OutcomeISPBlock {
		t.Fatalf("expected isp scoped outcome, but got %s", v.Outcome)
	}

	obs.FingerprintCountryConsistent = nil
	v = MakeWebsiteHTTPVerdict(obs, &HTTPBaseline{}, nil, fpdb)
	if v == nil || v.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, but got %+v", v)
	}

	// a blockpage matched inside an encrypted response makes no sense
	obs.RequestIsEncrypted = true
	v = MakeWebsiteHTTPVerdict(obs, &HTTPBaseline{}, nil, fpdb)
	if v == nil || v.Confidence != 0 {
		t.Fatalf("expected confidence 0 for encrypted blockpage, but got %+v", v)
	}
}

func TestMakeWebsiteHTTPVerdictBodyComparison(t *testing.T) {
	baseline := &HTTPBaseline{
		ResponseBodyLength:    1000,
		ResponseBodySHA1:      "abc",
		ResponseBodyTitle:     "Example Domain",
		ResponseBodyMetaTitle: "Example Meta",
	}

	obs := &observations.HTTPObservation{
		Base: testBase("2"), DomainName: "example.com",
		RequestURL:         "http://example.com/",
		ResponseBodyLength: 120,
		ResponseBodyTitle:  "Access Denied",
		ResponseBodySHA1:   "def",
	}
	v := MakeWebsiteHTTPVerdict(obs, baseline, nil, fingerprints.New(nil))
	if v == nil || v.OutcomeDetail != "http.bodydiff" || v.Confidence != 0.6 {
		t.Fatalf("expected http.bodydiff with confidence 0.6, but got %+v", v)
	}

	// matching title, sha1 or a known false positive clears the observation
	obs.ResponseBodyTitle = "Example Domain"
	if v := MakeWebsiteHTTPVerdict(obs, baseline, nil, fingerprints.New(nil)); v != nil {
		t.Fatalf("expected nil for matching title, but got %+v", v)
	}
	obs.ResponseBodyTitle = "Access Denied"
	obs.ResponseBodySHA1 = "abc"
	if v := MakeWebsiteHTTPVerdict(obs, baseline, nil, fingerprints.New(nil)); v != nil {
		t.Fatalf("expected nil for matching body hash, but got %+v", v)
	}
	obs.ResponseBodySHA1 = "def"
	obs.ResponseMatchesFalsePositive = true
	if v := MakeWebsiteHTTPVerdict(obs, baseline, nil, fingerprints.New(nil)); v != nil {
		t.Fatalf("expected nil for false positive match, but got %+v", v)
	}

	// similar body sizes are not suspicious
	obs.ResponseMatchesFalsePositive = false
	obs.ResponseBodyLength = 900
	if v := MakeWebsiteHTTPVerdict(obs, baseline, nil, fingerprints.New(nil)); v != nil {
		t.Fatalf("expected nil for similar body length, but got %+v", v)
	}
}

func TestMakeWebsiteVerdictsAllOK(t *testing.T) {
	consistent := true
	dnsObs := []*observations.DNSObservation{
		{Base: testBase("0"), DomainName: "example.com", Answer: "93.184.216.34", IsTLSConsistent: &consistent},
	}
	verdicts := MakeWebsiteVerdicts(dnsObs, &DNSBaseline{}, fingerprints.New(nil), &stubResolver{}, nil, nil, nil, nil, nil)
	if len(verdicts) != 1 {
		t.Fatalf("expected a single verdict, but got %d", len(verdicts))
	}
	v := verdicts[0]
	if v.Outcome != OutcomeOK || v.OutcomeDetail != "all" || v.Confidence != 0.9 {
		t.Fatalf("expected final OK verdict, but got %+v", v)
	}
	if v.Subject != "example.com" {
		t.Fatalf("expected subject example.com, but got %s", v.Subject)
	}
}

func TestMakeWebsiteVerdictsDNSResetOnOK(t *testing.T) {
	consistent := true
	inconsistent := false
	dnsObs := []*observations.DNSObservation{
		{Base: testBase("0"), DomainName: "example.com", Answer: "1.2.3.4", IsTLSConsistent: &inconsistent},
		{Base: testBase("1"), DomainName: "example.com", Answer: "93.184.216.34", IsTLSConsistent: &consistent},
	}
	verdicts := MakeWebsiteVerdicts(dnsObs, &DNSBaseline{}, fingerprints.New(nil), &stubResolver{}, nil, nil, nil, nil, nil)
	if len(verdicts) != 1 || verdicts[0].Outcome != OutcomeOK {
		t.Fatalf("expected the OK resolution to void the dns verdicts, but got %+v", verdicts)
	}
}

func TestMakeWebsiteVerdictsLayering(t *testing.T) {
	inconsistent := false
	dnsObs := []*observations.DNSObservation{
		{Base: testBase("0"), DomainName: "example.com", Answer: "1.2.3.4", IsTLSConsistent: &inconsistent},
	}
	tcpObs := []*observations.TCPObservation{
		{Base: testBase("1"), DomainName: "example.com", IP: "1.2.3.4", Port: 443, Failure: "connection_reset"},
	}
	tcpBaselines := map[string]*TCPBaseline{
		"1.2.3.4:443": {ReachableCCASN: vantages(4)},
	}
	// the TLS failure on the same endpoint must be suppressed by the TCP verdict
	tlsObs := []*observations.TLSObservation{
		{Base: testBase("2"), DomainName: "example.com", IP: "1.2.3.4", Port: 443, Failure: "connection_reset"},
	}

	verdicts := MakeWebsiteVerdicts(dnsObs, &DNSBaseline{}, fingerprints.New(nil), &stubResolver{}, tcpObs, tcpBaselines, tlsObs, nil, nil)
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, but got %d: %+v", len(verdicts), verdicts)
	}
	if verdicts[0].OutcomeDetail != "dns.inconsistent" {
		t.Fatalf("expected dns verdict first, but got %+v", verdicts[0])
	}
	if verdicts[1].OutcomeDetail != "tcp.connection_reset" {
		t.Fatalf("expected tcp verdict second, but got %+v", verdicts[1])
	}
}
