package processing

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/store"
)

// quarantineMaxStringSize bounds string sizes in quarantined raw records, so
// multi-megabyte response bodies don't bloat the quarantine files.
const quarantineMaxStringSize = 16 * 1024

// Quarantine is the sink for malformed measurements: the trimmed raw record
// goes to a jsonl file, the failure trace to a companion log. Records carry
// the run id so multiple runs appending to the same directory stay
// distinguishable.
type Quarantine struct {
	runID  string
	influx store.InfluxService

	m       sync.Mutex
	records *os.File
	traces  *os.File
}

func NewQuarantine(dir string, influx store.InfluxService) (*Quarantine, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, pkgerrors.Wrap(err, "create quarantine directory")
	}
	records, err := os.OpenFile(filepath.Join(dir, "bad_msmts.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open quarantine records file")
	}
	traces, err := os.OpenFile(filepath.Join(dir, "bad_msmts_fail_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		records.Close()
		return nil, pkgerrors.Wrap(err, "open quarantine trace file")
	}
	return &Quarantine{
		runID:   uuid.New().String(),
		influx:  influx,
		records: records,
		traces:  traces,
	}, nil
}

// Write appends one malformed measurement and its failure. The raw record is
// trimmed of oversized strings first; if even that fails, the record is
// written as-is.
func (q *Quarantine) Write(raw []byte, cause error) error {
	q.m.Lock()
	defer q.m.Unlock()

	trimmed := raw
	if v, err := measurement.ParseValue(raw); err == nil {
		if enc, err := v.TrimStrings(quarantineMaxStringSize).Encode(); err == nil {
			trimmed = enc
		}
	}

	if _, err := q.records.Write(append(trimmed, '\n')); err != nil {
		return pkgerrors.Wrap(err, "write quarantine record")
	}
	// %+v renders the error with its stack when one was attached
	trace := fmt.Sprintf("run %s %s\n%+v\nENDTB----\n", q.runID, time.Now().Format(time.RFC3339), cause)
	if _, err := q.traces.WriteString(trace); err != nil {
		return pkgerrors.Wrap(err, "write quarantine trace")
	}
	q.influx.QuarantineCount("malformed_measurement")
	return nil
}

func (q *Quarantine) Close() error {
	q.m.Lock()
	defer q.m.Unlock()
	if err := q.records.Close(); err != nil {
		return err
	}
	return q.traces.Close()
}
