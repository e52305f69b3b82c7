// Package processing drives the pipeline: it routes measurements to the
// right observation builders per nettest, groups persisted observations into
// sessions, and runs the baseline/verdict engine per day.
package processing

import (
	"net"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/measurement"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/observations"
	"github.com/probewatch/probewatch/store"
)

// Processor handles the protocol records of one nettest.
type Processor func(msmt *measurement.Measurement, builder *observations.Builder, conn store.Connection) error

// Processors routes a measurement's test name to its processor. Test names
// without an entry are ignored after their obs_nettest row is written.
var Processors = map[string]Processor{
	"web_connectivity": WebConnectivityProcessor,
	"dnscheck":         DNSCheckProcessor,
	"tor":              TorProcessor,
}

func writeObservations(conn store.Connection, obsList ...observations.Observation) error {
	for _, obs := range obsList {
		if err := conn.WriteRow(obs.TableName(), obs.Row()); err != nil {
			return err
		}
	}
	return nil
}

func writeDNS(conn store.Connection, obsList []*observations.DNSObservation) error {
	for _, obs := range obsList {
		if err := writeObservations(conn, obs); err != nil {
			return err
		}
	}
	return nil
}

func writeTCP(conn store.Connection, obsList []*observations.TCPObservation) error {
	for _, obs := range obsList {
		if err := writeObservations(conn, obs); err != nil {
			return err
		}
	}
	return nil
}

func writeTLS(conn store.Connection, obsList []*observations.TLSObservation) error {
	for _, obs := range obsList {
		if err := writeObservations(conn, obs); err != nil {
			return err
		}
	}
	return nil
}

func writeHTTP(conn store.Connection, obsList []*observations.HTTPObservation) error {
	for _, obs := range obsList {
		if err := writeObservations(conn, obs); err != nil {
			return err
		}
	}
	return nil
}

// ipToDomainMap builds the session's IP to domain mapping from its DNS
// observations. Each call starts from a fresh map.
func ipToDomainMap(obsList []*observations.DNSObservation, into map[string]string) map[string]string {
	if into == nil {
		into = map[string]string{}
	}
	for _, obs := range obsList {
		if obs.Answer == "" || net.ParseIP(obs.Answer) == nil {
			continue
		}
		into[obs.Answer] = obs.DomainName
	}
	return into
}

// WebConnectivityProcessor builds DNS, TCP, TLS and HTTP observations from a
// web_connectivity measurement.
func WebConnectivityProcessor(msmt *measurement.Measurement, builder *observations.Builder, conn store.Connection) error {
	keys, err := msmt.WebConnectivityKeys()
	if err != nil {
		return err
	}

	dnsObs := builder.DNS(keys.Queries, "")
	if err := writeDNS(conn, dnsObs); err != nil {
		return err
	}

	ipToDomain := ipToDomainMap(dnsObs, nil)
	if err := writeTCP(conn, builder.TCP(keys.TCPConnect, ipToDomain, "")); err != nil {
		return err
	}
	if err := writeTLS(conn, builder.TLS(keys.TLSHandshakes, keys.NetworkEvents, ipToDomain, "")); err != nil {
		return err
	}
	return writeHTTP(conn, builder.HTTP(keys.Requests, ""))
}

// DNSCheckProcessor builds observations from a dnscheck measurement. The
// bootstrap queries seed the IP to domain mapping used by the per-resolver
// lookups.
func DNSCheckProcessor(msmt *measurement.Measurement, builder *observations.Builder, conn store.Connection) error {
	keys, err := msmt.DNSCheckKeys()
	if err != nil {
		return err
	}

	ipToDomain := map[string]string{}
	if keys.Bootstrap != nil {
		dnsObs := builder.DNS(keys.Bootstrap.Queries, "")
		ipToDomain = ipToDomainMap(dnsObs, ipToDomain)
		if err := writeDNS(conn, dnsObs); err != nil {
			return err
		}
	}

	// map iteration order is not stable; keep lookups deterministic
	names := make([]string, 0, len(keys.Lookups))
	for name := range keys.Lookups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lookup := keys.Lookups[name]
		if err := writeDNS(conn, builder.DNS(lookup.Queries, "")); err != nil {
			return err
		}
		if err := writeHTTP(conn, builder.HTTP(lookup.Requests, "")); err != nil {
			return err
		}
		if err := writeTCP(conn, builder.TCP(lookup.TCPConnect, ipToDomain, "")); err != nil {
			return err
		}
		if err := writeTLS(conn, builder.TLS(lookup.TLSHandshakes, lookup.NetworkEvents, ipToDomain, "")); err != nil {
			return err
		}
	}
	return nil
}

// TorProcessor builds observations from a tor measurement, one target label
// per bridge or directory authority.
func TorProcessor(msmt *measurement.Measurement, builder *observations.Builder, conn store.Connection) error {
	keys, err := msmt.TorKeys()
	if err != nil {
		return err
	}

	targetIDs := make([]string, 0, len(keys.Targets))
	for targetID := range keys.Targets {
		targetIDs = append(targetIDs, targetID)
	}
	sort.Strings(targetIDs)

	ipToDomain := map[string]string{}
	for _, targetID := range targetIDs {
		target := keys.Targets[targetID]
		if err := writeHTTP(conn, builder.HTTP(target.Requests, targetID)); err != nil {
			return err
		}
		if err := writeDNS(conn, builder.DNS(target.Queries, targetID)); err != nil {
			return err
		}
		if err := writeTCP(conn, builder.TCP(target.TCPConnect, ipToDomain, targetID)); err != nil {
			return err
		}
		if err := writeTLS(conn, builder.TLS(target.TLSHandshakes, target.NetworkEvents, ipToDomain, targetID)); err != nil {
			return err
		}
	}
	return nil
}

// ProcessMeasurement writes the per-measurement metadata row and routes the
// measurement to its nettest processor.
func ProcessMeasurement(msmt *measurement.Measurement, resolver netinfo.Resolver, fpdb *fingerprints.DB, conn store.Connection) error {
	builder, err := observations.NewBuilder(msmt, resolver, fpdb)
	if err != nil {
		return err
	}
	if err := writeObservations(conn, builder.Nettest()); err != nil {
		return err
	}

	processor, ok := Processors[msmt.TestName]
	if !ok {
		log.Debug().Msgf("ignoring measurement %s with test_name %s", msmt.MeasurementUID, msmt.TestName)
		return nil
	}
	return processor(msmt, builder, conn)
}
