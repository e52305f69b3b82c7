package store

import (
	"encoding/csv"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCSVConnectionWriteRow(t *testing.T) {
	dir, err := ioutil.TempDir("", "csvstore")
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	conn, err := NewCSVConnection(dir)
	if err != nil {
		t.Fatalf("failed to create connection: %s", err)
	}
	row := Row{
		{"measurement_uid", "abc"},
		{"answer_is_bogon", true},
		{"answer_asn", 15133},
	}
	if err := conn.WriteRow("obs_dns", row); err != nil {
		t.Fatalf("failed to write row: %s", err)
	}
	if err := conn.WriteRow("obs_dns", row); err != nil {
		t.Fatalf("failed to write second row: %s", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("failed to close connection: %s", err)
	}

	f, err := os.Open(filepath.Join(dir, "obs_dns.csv"))
	if err != nil {
		t.Fatalf("failed to open output file: %s", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse output: %s", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, but got %d records", len(records))
	}
	if !reflect.DeepEqual(records[0], []string{"measurement_uid", "answer_is_bogon", "answer_asn"}) {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if !reflect.DeepEqual(records[1], []string{"abc", "t", "15133"}) {
		t.Fatalf("unexpected row: %v", records[1])
	}
}

func TestCSVConnectionRejectsQueries(t *testing.T) {
	dir, err := ioutil.TempDir("", "csvstore")
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	conn, err := NewCSVConnection(dir)
	if err != nil {
		t.Fatalf("failed to create connection: %s", err)
	}
	defer conn.Close()

	if _, err := conn.Execute("SELECT 1"); err == nil {
		t.Fatalf("expected an error for queries")
	}
	if err := conn.Exec("DELETE FROM verdict"); err == nil {
		t.Fatalf("expected an error for statements")
	}
	if conn.SupportsQueries() {
		t.Fatalf("expected SupportsQueries to be false")
	}
	if conn.ConcurrentWriters() {
		t.Fatalf("expected ConcurrentWriters to be false")
	}
}
