package verdicts

import (
	"net"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/probewatch/probewatch/datautil"
	"github.com/probewatch/probewatch/observations"
	"github.com/probewatch/probewatch/store"
)

// ExtendTLSBaseline resolves the TLS consistency of this session's DNS
// answers that the baseline doesn't already cover. Answers that are not IP
// literals or are bogons are never probed. The persistent cache is consulted
// first; only answers still unresolved get a single live TLS probe, and
// confirmations are appended to the cache. Returns the newly confirmed
// addresses, which the caller folds into the baseline.
func ExtendTLSBaseline(baseline *DNSBaseline, dnsObsList []*observations.DNSObservation, conn store.Connection, probe TLSProber, influx store.InfluxService) ([]string, error) {
	if len(dnsObsList) == 0 {
		return nil, nil
	}
	domainName := dnsObsList[0].DomainName

	missing := map[string]bool{}
	for _, obs := range dnsObsList {
		answer := obs.Answer
		if answer == "" {
			continue
		}
		if net.ParseIP(answer) == nil {
			continue
		}
		if datautil.IsBogon(answer) {
			continue
		}
		if baseline.HasConsistentAnswer(answer) {
			continue
		}
		missing[answer] = true
	}
	if len(missing) == 0 {
		return nil, nil
	}

	ipList := make([]string, 0, len(missing))
	for ip := range missing {
		ipList = append(ipList, ip)
	}

	var newConsistent []string
	rows, err := conn.Execute(`SELECT DISTINCT ip FROM dns_consistency_tls_baseline
	WHERE ip = ANY($1) AND domain_name = $2`, pq.Array(ipList), domainName)
	if err != nil {
		return nil, errors.Wrap(err, "query tls consistency cache")
	}
	for _, row := range rows {
		ip := columnString(row[0])
		delete(missing, ip)
		newConsistent = append(newConsistent, ip)
	}

	for ip := range missing {
		consistent := probe(ip, domainName)
		influx.LiveProbe(consistent)
		if !consistent {
			continue
		}
		err := conn.Exec(`INSERT INTO dns_consistency_tls_baseline (ip, domain_name, timestamp)
		VALUES ($1, $2, $3)`, ip, domainName, time.Now())
		if err != nil {
			return nil, errors.Wrap(err, "append tls consistency cache")
		}
		newConsistent = append(newConsistent, ip)
	}
	return newConsistent, nil
}
