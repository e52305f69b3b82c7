package processing

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/store"
)

func TestDirSource(t *testing.T) {
	dir, err := ioutil.TempDir("", "measurements")
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	day := time.Date(2022, 1, 7, 0, 0, 0, 0, time.UTC)
	content := "{\"a\": 1}\n{\"a\": 2}\n{\"a\": 3}\n"
	if err := ioutil.WriteFile(filepath.Join(dir, "2022-01-07.jsonl"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write measurement file: %s", err)
	}

	source := &DirSource{Dir: dir}
	var lines []string
	var indexes []int
	err = source.Measurements(day, func(idx int, raw []byte) error {
		indexes = append(indexes, idx)
		lines = append(lines, string(raw))
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read measurements: %s", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 measurements, but got %d", len(lines))
	}
	if indexes[0] != 0 || indexes[2] != 2 {
		t.Fatalf("unexpected indexes: %v", indexes)
	}
	if lines[1] != `{"a": 2}` {
		t.Fatalf("unexpected second line: %s", lines[1])
	}
}

func TestDirSourceMissingDay(t *testing.T) {
	dir, err := ioutil.TempDir("", "measurements")
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	source := &DirSource{Dir: dir}
	called := false
	err = source.Measurements(time.Date(2022, 1, 7, 0, 0, 0, 0, time.UTC), func(idx int, raw []byte) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected a missing day to be skipped, but got %s", err)
	}
	if called {
		t.Fatalf("expected the callback never to fire")
	}
}

func TestMatchesFilter(t *testing.T) {
	if !matchesFilter("IT", nil) {
		t.Fatalf("expected an empty filter to match everything")
	}
	if !matchesFilter("IT", []string{"US", "IT"}) {
		t.Fatalf("expected IT to match")
	}
	if matchesFilter("DE", []string{"US", "IT"}) {
		t.Fatalf("expected DE not to match")
	}
}

func writeDayFile(t *testing.T, lines ...string) (string, time.Time) {
	t.Helper()
	dir, err := ioutil.TempDir("", "measurements")
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	day := time.Date(2022, 1, 7, 0, 0, 0, 0, time.UTC)
	content := strings.Join(lines, "\n") + "\n"
	if err := ioutil.WriteFile(filepath.Join(dir, "2022-01-07.jsonl"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write measurement file: %s", err)
	}
	return dir, day
}

func testDeps(t *testing.T, conn store.Connection) Deps {
	t.Helper()
	qdir, err := ioutil.TempDir("", "quarantine")
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(qdir) })
	influx := store.NewInfluxService(store.InfluxOpts{})
	quarantine, err := NewQuarantine(qdir, influx)
	if err != nil {
		t.Fatalf("failed to open quarantine: %s", err)
	}
	t.Cleanup(func() { quarantine.Close() })
	return Deps{
		Conn:       conn,
		FpDB:       fingerprints.New(nil),
		Resolver:   nilResolver{},
		Prober:     func(ip, hostname string) bool { return false },
		Influx:     influx,
		Quarantine: quarantine,
	}
}

func goodMeasurementLine() string {
	return `{"measurement_uid": "uid1", "report_id": "r1", "measurement_start_time": "2022-01-07 22:24:58", "test_name": "web_connectivity", "probe_asn": "AS12874", "probe_cc": "IT", "test_keys": {"queries": []}}`
}

func TestProcessDayQuarantinesMalformed(t *testing.T) {
	dir, day := writeDayFile(t,
		goodMeasurementLine(),
		`{"measurement_uid": "uid2", "measurement_start_time": "garbage", "test_name": "web_connectivity", "probe_asn": "AS1", "probe_cc": "IT"}`,
	)
	conn := newMemoryConnection()
	deps := testDeps(t, conn)

	_, err := ProcessDay(day, &DirSource{Dir: dir}, deps, Options{})
	if err != nil {
		t.Fatalf("expected the malformed measurement to be quarantined, but got %s", err)
	}
	if len(conn.rows["obs_nettest"]) != 1 {
		t.Fatalf("expected 1 metadata row, but got %d", len(conn.rows["obs_nettest"]))
	}
}

func TestProcessDayFastFail(t *testing.T) {
	dir, day := writeDayFile(t,
		`{"measurement_uid": "uid2", "measurement_start_time": "garbage", "test_name": "web_connectivity", "probe_asn": "AS1", "probe_cc": "IT"}`,
	)
	deps := testDeps(t, newMemoryConnection())

	if _, err := ProcessDay(day, &DirSource{Dir: dir}, deps, Options{FastFail: true}); err == nil {
		t.Fatalf("expected fast fail to propagate the error")
	}
}

func TestProcessDayFilters(t *testing.T) {
	dir, day := writeDayFile(t, goodMeasurementLine())
	conn := newMemoryConnection()
	deps := testDeps(t, conn)

	_, err := ProcessDay(day, &DirSource{Dir: dir}, deps, Options{ProbeCCs: []string{"US"}})
	if err != nil {
		t.Fatalf("failed to process day: %s", err)
	}
	if len(conn.rows) != 0 {
		t.Fatalf("expected the filtered measurement to be skipped, but got %v", conn.rows)
	}

	_, err = ProcessDay(day, &DirSource{Dir: dir}, deps, Options{StartAtIdx: 1})
	if err != nil {
		t.Fatalf("failed to process day: %s", err)
	}
	if len(conn.rows) != 0 {
		t.Fatalf("expected the resume offset to skip the measurement, but got %v", conn.rows)
	}
}
