package processing

import (
	"sync"
	"testing"
	"time"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/observations"
	"github.com/probewatch/probewatch/store"
)

// memoryConnection captures written rows and executed statements.
type memoryConnection struct {
	m            sync.Mutex
	rows         map[string][]store.Row
	execs        []string
	singleWriter bool
}

func newMemoryConnection() *memoryConnection {
	return &memoryConnection{rows: map[string][]store.Row{}}
}

func (c *memoryConnection) WriteRow(table string, row store.Row) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.rows[table] = append(c.rows[table], row)
	return nil
}

func (c *memoryConnection) Execute(query string, args ...interface{}) ([][]interface{}, error) {
	return nil, nil
}

func (c *memoryConnection) Exec(query string, args ...interface{}) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.execs = append(c.execs, query)
	return nil
}

func (c *memoryConnection) Flush() error            { return nil }
func (c *memoryConnection) SupportsQueries() bool   { return false }
func (c *memoryConnection) ConcurrentWriters() bool { return !c.singleWriter }
func (c *memoryConnection) Close() error            { return nil }

type nilResolver struct{}

func (nilResolver) LookupIP(ts time.Time, ip string) *netinfo.IPInfo { return nil }
func (nilResolver) LookupASN(ts time.Time, asn int) *netinfo.ASInfo  { return nil }

func TestIPToDomainMap(t *testing.T) {
	obsList := []*observations.DNSObservation{
		{DomainName: "example.com", Answer: "93.184.216.34"},
		{DomainName: "example.com", Answer: "cdn.example.com"},
		{DomainName: "example.com", Answer: ""},
		{DomainName: "example.com", Answer: "2606:2800:220:1::1"},
	}
	m := ipToDomainMap(obsList, nil)
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, but got %v", m)
	}
	if m["93.184.216.34"] != "example.com" || m["2606:2800:220:1::1"] != "example.com" {
		t.Fatalf("unexpected mapping: %v", m)
	}

	// seeding an existing map keeps its entries
	seeded := ipToDomainMap(obsList[:1], map[string]string{"1.2.3.4": "other.org"})
	if len(seeded) != 2 || seeded["1.2.3.4"] != "other.org" {
		t.Fatalf("expected the seed entry to survive, but got %v", seeded)
	}
}

func webConnectivityMeasurement() *measurement.Measurement {
	raw := []byte(`{
		"measurement_uid": "20220107222458.184469_IT_webconnectivity_abc",
		"report_id": "20220107T222039Z_webconnectivity_IT_12874_n1_x",
		"input": "https://example.com/",
		"measurement_start_time": "2022-01-07 22:24:58",
		"test_name": "web_connectivity",
		"test_version": "0.4.1",
		"probe_asn": "AS12874",
		"probe_cc": "IT",
		"test_keys": {
			"queries": [
				{"query_type": "A", "hostname": "example.com",
				 "answers": [{"answer_type": "A", "ipv4": "93.184.216.34"}]}
			],
			"tcp_connect": [
				{"ip": "93.184.216.34", "port": 443, "status": {"success": true}}
			],
			"tls_handshakes": [
				{"server_name": "example.com", "address": "93.184.216.34:443", "tls_version": "TLSv1.3"}
			],
			"requests": [
				{"request": {"url": "https://example.com/", "method": "GET"},
				 "response": {"code": 200, "body": "<html><title>Example</title></html>"}}
			]
		}
	}`)
	m, err := measurement.Load(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func TestProcessMeasurementWebConnectivity(t *testing.T) {
	conn := newMemoryConnection()
	err := ProcessMeasurement(webConnectivityMeasurement(), nilResolver{}, fingerprints.New(nil), conn)
	if err != nil {
		t.Fatalf("failed to process measurement: %s", err)
	}

	expected := map[string]int{
		"obs_nettest": 1,
		"obs_dns":     1,
		"obs_tcp":     1,
		"obs_tls":     1,
		"obs_http":    1,
	}
	for table, count := range expected {
		if len(conn.rows[table]) != count {
			t.Fatalf("expected %d rows in %s, but got %d", count, table, len(conn.rows[table]))
		}
	}

	// the TCP observation recovers its domain through the DNS answer
	tcpRow := conn.rows["obs_tcp"][0]
	found := false
	for _, field := range tcpRow {
		if field.Name == "domain_name" {
			found = true
			if field.Value != "example.com" {
				t.Fatalf("expected domain example.com, but got %v", field.Value)
			}
		}
	}
	if !found {
		t.Fatalf("expected a domain_name column in the tcp row")
	}
}

func TestProcessMeasurementUnknownTestName(t *testing.T) {
	msmt := webConnectivityMeasurement()
	msmt.TestName = "signal"

	conn := newMemoryConnection()
	if err := ProcessMeasurement(msmt, nilResolver{}, fingerprints.New(nil), conn); err != nil {
		t.Fatalf("expected unknown test names to be ignored, but got %s", err)
	}
	if len(conn.rows["obs_nettest"]) != 1 {
		t.Fatalf("expected the metadata row to be written anyway")
	}
	if len(conn.rows["obs_dns"]) != 0 {
		t.Fatalf("expected no protocol observations for an unknown test name")
	}
}

func TestProcessMeasurementMalformed(t *testing.T) {
	msmt := webConnectivityMeasurement()
	msmt.ProbeASN = "not an asn"

	conn := newMemoryConnection()
	if err := ProcessMeasurement(msmt, nilResolver{}, fingerprints.New(nil), conn); err == nil {
		t.Fatalf("expected an error for a malformed measurement")
	}
	if len(conn.rows) != 0 {
		t.Fatalf("expected no rows for a malformed measurement, but got %v", conn.rows)
	}
}
