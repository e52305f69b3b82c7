package processing

import (
	"testing"

	"github.com/probewatch/probewatch/observations"
)

func dnsObsInReport(reportID, uid string) *observations.DNSObservation {
	return &observations.DNSObservation{
		Base: observations.Base{
			ReportID:       reportID,
			MeasurementUID: uid,
			ObservationID:  uid + "_0",
		},
		DomainName: "example.com",
	}
}

func TestGroupBySession(t *testing.T) {
	obsList := []*observations.DNSObservation{
		dnsObsInReport("report-a", "1"),
		dnsObsInReport("report-a", "2"),
		dnsObsInReport("report-b", "3"),
		dnsObsInReport("report-b", "4"),
	}
	sessions := GroupBySession(obsList)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, but got %d", len(sessions))
	}
	if len(sessions[0]) != 2 || sessions[0][0].MeasurementUID != "1" {
		t.Fatalf("unexpected first session: %v", sessions[0])
	}
	if len(sessions[1]) != 2 || sessions[1][0].MeasurementUID != "3" {
		t.Fatalf("unexpected second session: %v", sessions[1])
	}
}

func TestGroupBySessionAdjacencyOnly(t *testing.T) {
	// a report id reappearing non-contiguously opens a fresh session rather
	// than rejoining the earlier one
	obsList := []*observations.DNSObservation{
		dnsObsInReport("report-a", "1"),
		dnsObsInReport("report-a", "2"),
		dnsObsInReport("report-b", "3"),
		dnsObsInReport("report-a", "4"),
	}
	sessions := GroupBySession(obsList)
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, but got %d", len(sessions))
	}
	if sessions[2][0].MeasurementUID != "4" {
		t.Fatalf("expected the reappearing report to open its own session, but got %v", sessions[2])
	}
}

func TestGroupBySessionEmpty(t *testing.T) {
	if sessions := GroupBySession(nil); sessions != nil {
		t.Fatalf("expected no sessions, but got %v", sessions)
	}
}

func TestDeleteSessionVerdicts(t *testing.T) {
	conn := newMemoryConnection()
	if err := DeleteSessionVerdicts("report-a", conn); err != nil {
		t.Fatalf("failed to delete verdicts: %s", err)
	}
	if len(conn.execs) != 1 || conn.execs[0] != "DELETE FROM verdict WHERE report_id = $1" {
		t.Fatalf("unexpected statements: %v", conn.execs)
	}
}
