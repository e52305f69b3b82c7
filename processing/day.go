package processing

import (
	"bufio"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/store"
	"github.com/probewatch/probewatch/verdicts"
)

// Source yields the raw measurement records of one day, in upload order.
type Source interface {
	Measurements(day time.Time, fn func(idx int, raw []byte) error) error
}

// DirSource reads measurements from per-day jsonl files named
// <dir>/YYYY-MM-DD.jsonl, one raw measurement per line.
type DirSource struct {
	Dir string
}

// measurements can carry whole response bodies; lines get large
const maxLineSize = 64 * 1024 * 1024

func (s *DirSource) Measurements(day time.Time, fn func(idx int, raw []byte) error) error {
	path := filepath.Join(s.Dir, day.Format("2006-01-02")+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Msgf("no measurement file for %s", day.Format("2006-01-02"))
			return nil
		}
		return errors.Wrap(err, "open measurement file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)
	idx := 0
	for scanner.Scan() {
		raw := make([]byte, len(scanner.Bytes()))
		copy(raw, scanner.Bytes())
		if err := fn(idx, raw); err != nil {
			return err
		}
		idx++
	}
	return errors.Wrap(scanner.Err(), "scan measurement file")
}

// Options control a processing pass.
type Options struct {
	// restrict ingestion to these test names / probe countries; empty means all
	TestNames []string
	ProbeCCs  []string

	// resume offset: measurements before this index are skipped
	StartAtIdx int

	SkipVerdicts bool
	OnlyVerdicts bool
	FastFail     bool

	// optional country filter for the verdict generation pass
	VerdictProbeCC string
}

func matchesFilter(value string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// Deps bundles one worker's collaborators. Each worker owns its own
// connection and enrichment handles.
type Deps struct {
	Conn       store.Connection
	FpDB       *fingerprints.DB
	Resolver   netinfo.Resolver
	Prober     verdicts.TLSProber
	Influx     store.InfluxService
	Quarantine *Quarantine
}

// ProcessDay ingests one day of measurements and then generates verdicts for
// it. Malformed measurements are quarantined and skipped unless fail-fast is
// set. Destinations that cannot be queried skip the verdict pass.
func ProcessDay(day time.Time, source Source, deps Deps, opts Options) (time.Duration, error) {
	t0 := time.Now()

	if !opts.OnlyVerdicts {
		err := source.Measurements(day, func(idx int, raw []byte) error {
			if idx < opts.StartAtIdx {
				return nil
			}
			msmt, err := measurement.Load(raw)
			if err == nil {
				if !matchesFilter(msmt.TestName, opts.TestNames) || !matchesFilter(msmt.ProbeCC, opts.ProbeCCs) {
					return nil
				}
				err = ProcessMeasurement(msmt, deps.Resolver, deps.FpDB, deps.Conn)
			}
			if err != nil {
				if qerr := deps.Quarantine.Write(raw, err); qerr != nil {
					return qerr
				}
				if opts.FastFail {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return time.Since(t0), err
		}
		if err := deps.Conn.Flush(); err != nil {
			return time.Since(t0), err
		}
	}

	if deps.Conn.SupportsQueries() && !opts.SkipVerdicts {
		vdeps := VerdictDeps{
			Conn:     deps.Conn,
			FpDB:     deps.FpDB,
			Resolver: deps.Resolver,
			Prober:   deps.Prober,
			Influx:   deps.Influx,
		}
		if err := GenerateWebsiteVerdicts(day, vdeps, opts.VerdictProbeCC); err != nil {
			return time.Since(t0), err
		}
		if err := deps.Conn.Flush(); err != nil {
			return time.Since(t0), err
		}
	}

	return time.Since(t0), nil
}
