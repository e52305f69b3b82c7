package processing

import (
	"context"
	"sync"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/rs/zerolog/log"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
	"golang.org/x/sync/semaphore"

	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/store"
	"github.com/probewatch/probewatch/verdicts"
)

// maxConcurrentDomains bounds the per-day fan-out over domains while
// generating verdicts.
const maxConcurrentDomains = 4

// VerdictDeps are the collaborators of the verdict generation pass.
type VerdictDeps struct {
	Conn     store.Connection
	FpDB     *fingerprints.DB
	Resolver netinfo.Resolver
	Prober   verdicts.TLSProber
	Influx   store.InfluxService
}

func writeVerdicts(conn store.Connection, influx store.InfluxService, verdictList []*verdicts.Verdict) error {
	for _, v := range verdictList {
		if err := conn.WriteRow(v.TableName(), v.Row()); err != nil {
			return err
		}
		influx.VerdictCount(string(v.Outcome), 1)
	}
	return nil
}

// generateDomainVerdicts runs the verdict engine for one (day, domain): it
// builds the three baselines once, then walks the domain's sessions in
// order, extending the TLS-consistency baseline with this session's answers
// before comparing.
func generateDomainVerdicts(day time.Time, domainName string, deps VerdictDeps, probeCC string) error {
	log.Debug().Msgf("generating verdicts for %s", domainName)

	dnsBaseline, err := verdicts.MakeDNSBaseline(day, domainName, deps.Conn)
	if err != nil {
		return err
	}
	httpBaselineMap, err := verdicts.MakeHTTPBaselineMap(day, domainName, deps.Conn)
	if err != nil {
		return err
	}
	tcpBaselineMap, err := verdicts.MakeTCPBaselineMap(day, domainName, deps.Conn)
	if err != nil {
		return err
	}

	sessions, err := DNSObservationsBySession(day, domainName, deps.Conn, probeCC)
	if err != nil {
		return err
	}

	for _, dnsObsList := range sessions {
		reportID := dnsObsList[0].ReportID
		tcpObsList, err := TCPObservationsInSession(day, domainName, reportID, deps.Conn)
		if err != nil {
			return err
		}
		tlsObsList, err := TLSObservationsInSession(day, domainName, reportID, deps.Conn)
		if err != nil {
			return err
		}
		httpObsList, err := HTTPObservationsInSession(day, domainName, reportID, deps.Conn)
		if err != nil {
			return err
		}

		if err := DeleteSessionVerdicts(reportID, deps.Conn); err != nil {
			return err
		}

		extra, err := verdicts.ExtendTLSBaseline(dnsBaseline, dnsObsList, deps.Conn, deps.Prober, deps.Influx)
		if err != nil {
			return err
		}
		for _, ip := range extra {
			if !dnsBaseline.HasConsistentAnswer(ip) {
				dnsBaseline.TLSConsistentAnswers = append(dnsBaseline.TLSConsistentAnswers, ip)
			}
		}

		// the makers get their own copy so the shared baseline survives the
		// session untouched
		sessionBaseline := deepcopy.Copy(dnsBaseline).(*verdicts.DNSBaseline)
		verdictList := verdicts.MakeWebsiteVerdicts(
			dnsObsList,
			sessionBaseline,
			deps.FpDB,
			deps.Resolver,
			tcpObsList,
			tcpBaselineMap,
			tlsObsList,
			httpObsList,
			httpBaselineMap,
		)
		if err := writeVerdicts(deps.Conn, deps.Influx, verdictList); err != nil {
			return err
		}
	}
	return nil
}

// GenerateWebsiteVerdicts runs the verdict engine over every domain observed
// on a day, bounding the per-domain fan-out.
func GenerateWebsiteVerdicts(day time.Time, deps VerdictDeps, probeCC string) error {
	domains, err := DomainsInADay(day, deps.Conn, probeCC)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		return nil
	}

	wg := sync.WaitGroup{}
	p := mpb.New(mpb.WithWaitGroup(&wg))
	bar := p.AddBar(int64(len(domains)),
		mpb.PrependDecorators(
			decor.Name("verdicts "+day.Format("2006-01-02")),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace)),
		mpb.AppendDecorators(decor.Percentage()))

	sem := semaphore.NewWeighted(maxConcurrentDomains)
	ctx := context.Background()

	var m sync.Mutex
	var firstErr error

	for _, domainName := range domains {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func(domainName string) {
			defer wg.Done()
			defer sem.Release(1)
			defer bar.Increment()

			if err := generateDomainVerdicts(day, domainName, deps, probeCC); err != nil {
				m.Lock()
				if firstErr == nil {
					firstErr = err
				}
				m.Unlock()
				log.Error().Msgf("verdict generation for %s failed: %s", domainName, err)
			}
		}(domainName)
	}
	p.Wait()
	return firstErr
}
