package fingerprints

import (
	"testing"

	"github.com/probewatch/probewatch/measurement"
)

func testDB() *DB {
	return New([]*Fingerprint{
		{Name: "body.denied", Scope: "nat", LocationFound: "body", Pattern: "access denied", ExpectedCountries: []string{"IT", "IR"}},
		{Name: "header.via", Scope: "isp", LocationFound: "header", HeaderName: "Via", Pattern: "1.1 C1102"},
		{Name: "status.451", Scope: "nat", LocationFound: "status", Pattern: "451"},
		{Name: "dns.sinkhole", Scope: "nat", LocationFound: "dns", Pattern: "10.10.34.35"},
		{Name: "broken.rule", Scope: "nat", LocationFound: "teapot", Pattern: "x"},
	})
}

func TestMatchHTTPBody(t *testing.T) {
	db := testDB()
	resp := &measurement.HTTPResponse{
		Code: 200,
		Body: &measurement.MaybeBinaryData{Value: []byte("<html>access denied</html>")},
	}
	matches := db.MatchHTTP(resp)
	if len(matches) != 1 || matches[0].Name != "body.denied" {
		t.Fatalf("expected body.denied, but got %v", matches)
	}
}

func TestMatchHTTPHeader(t *testing.T) {
	db := testDB()
	resp := &measurement.HTTPResponse{
		Code: 200,
		HeadersList: []measurement.HeaderPair{
			{Key: "via", Value: measurement.MaybeBinaryData{Value: []byte("1.1 C1102 (Cache)")}},
		},
	}
	matches := db.MatchHTTP(resp)
	if len(matches) != 1 || matches[0].Name != "header.via" {
		t.Fatalf("expected header.via, but got %v", matches)
	}
}

func TestMatchHTTPStatus(t *testing.T) {
	db := testDB()
	matches := db.MatchHTTP(&measurement.HTTPResponse{Code: 451})
	if len(matches) != 1 || matches[0].Name != "status.451" {
		t.Fatalf("expected status.451, but got %v", matches)
	}
	if matches := db.MatchHTTP(&measurement.HTTPResponse{Code: 200}); matches != nil {
		t.Fatalf("expected no match for 200, but got %v", matches)
	}
}

func TestMatchHTTPMultiple(t *testing.T) {
	db := testDB()
	resp := &measurement.HTTPResponse{
		Code: 451,
		Body: &measurement.MaybeBinaryData{Value: []byte("access denied")},
	}
	matches := db.MatchHTTP(resp)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, but got %d", len(matches))
	}
}

func TestMatchHTTPNilResponse(t *testing.T) {
	if matches := testDB().MatchHTTP(nil); matches != nil {
		t.Fatalf("expected nil for nil response, but got %v", matches)
	}
}

func TestMatchDNS(t *testing.T) {
	db := testDB()
	if fp := db.MatchDNS("10.10.34.35"); fp == nil || fp.Name != "dns.sinkhole" {
		t.Fatalf("expected dns.sinkhole, but got %v", fp)
	}
	if fp := db.MatchDNS("8.8.8.8"); fp != nil {
		t.Fatalf("expected no match, but got %v", fp)
	}
	if fp := db.MatchDNS(""); fp != nil {
		t.Fatalf("expected no match for empty answer, but got %v", fp)
	}
}

func TestExpectsCountry(t *testing.T) {
	fp := testDB().Get("body.denied")
	if !fp.ExpectsCountry("IT") {
		t.Fatalf("expected IT to be expected")
	}
	if fp.ExpectsCountry("US") {
		t.Fatalf("expected US to be unexpected")
	}
	if testDB().Get("status.451").ExpectsCountry("IT") {
		t.Fatalf("expected empty country list to expect nothing")
	}
}

func TestUnknownLocationIgnored(t *testing.T) {
	if fp := testDB().Get("broken.rule"); fp != nil {
		t.Fatalf("expected rule with unknown location to be dropped, but got %v", fp)
	}
}
