package store

import (
	"io"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"
)

type InfluxService interface {
	ObservationCount(table string, count int)
	VerdictCount(outcome string, count int)
	QuarantineCount(reason string)
	LiveProbe(consistent bool)
	CacheSize(cacheName string, c *lru.Cache, total int)
	io.Closer
}

type influxService struct {
	client       influxdb2.Client
	api          influxapi.WriteAPI
	done         chan bool
	ticker       *time.Ticker
	observations map[string]int
	verdicts     map[string]int
	quarantined  map[string]int
	liveProbes   map[bool]int
	cacheSize    map[string]cacheInfo
	m            *sync.Mutex
}

func (ifs *influxService) ObservationCount(table string, count int) {
	ifs.m.Lock()
	defer ifs.m.Unlock()

	ifs.observations[table] += count
}

func (ifs *influxService) VerdictCount(outcome string, count int) {
	ifs.m.Lock()
	defer ifs.m.Unlock()

	ifs.verdicts[outcome] += count
}

func (ifs *influxService) QuarantineCount(reason string) {
	ifs.m.Lock()
	defer ifs.m.Unlock()

	ifs.quarantined[reason]++
}

func (ifs *influxService) LiveProbe(consistent bool) {
	ifs.m.Lock()
	defer ifs.m.Unlock()

	ifs.liveProbes[consistent]++
}

type cacheInfo struct {
	cur   int
	total int
}

func (ifs *influxService) CacheSize(cacheName string, c *lru.Cache, total int) {
	ifs.m.Lock()
	defer ifs.m.Unlock()

	ifs.cacheSize[cacheName] = cacheInfo{c.Len(), total}
}

func (ifs *influxService) Close() error {

	ifs.done <- true
	ifs.ticker.Stop()

	ifs.client.Close()

	return nil
}

func (ifs *influxService) write() {
	ifs.m.Lock()
	defer ifs.m.Unlock()

	// write observation counts
	for table, count := range ifs.observations {
		tags := map[string]string{
			"table": table,
		}
		fields := map[string]interface{}{
			"count": count,
		}
		p := influxdb2.NewPoint("observations", tags, fields, time.Now())
		ifs.api.WritePoint(p)
	}

	// write verdict counts
	for outcome, count := range ifs.verdicts {
		tags := map[string]string{
			"outcome": outcome,
		}
		fields := map[string]interface{}{
			"count": count,
		}
		p := influxdb2.NewPoint("verdicts", tags, fields, time.Now())
		ifs.api.WritePoint(p)
	}

	// write quarantine counts
	for reason, count := range ifs.quarantined {
		tags := map[string]string{
			"reason": reason,
		}
		fields := map[string]interface{}{
			"count": count,
		}
		p := influxdb2.NewPoint("quarantine", tags, fields, time.Now())
		ifs.api.WritePoint(p)
	}

	// write live probe counts
	for consistent, count := range ifs.liveProbes {
		tags := map[string]string{
			"consistent": csvString(consistent),
		}
		fields := map[string]interface{}{
			"count": count,
		}
		p := influxdb2.NewPoint("live-probes", tags, fields, time.Now())
		ifs.api.WritePoint(p)
	}

	// write cache sizes
	for cacheName, info := range ifs.cacheSize {
		tags := map[string]string{
			"cacheName": cacheName,
		}
		perc := float64(info.cur) / float64(info.total) * float64(100)
		fields := map[string]interface{}{
			"perc":  perc,
			"cur":   info.cur,
			"total": info.total,
		}
		p := influxdb2.NewPoint("cache", tags, fields, time.Now())
		ifs.api.WritePoint(p)
	}

	ifs.observations = map[string]int{}
	ifs.verdicts = map[string]int{}
	ifs.quarantined = map[string]int{}
	ifs.liveProbes = map[bool]int{}
	ifs.cacheSize = map[string]cacheInfo{}
}

type InfluxOpts struct {
	Enabled      bool   `yaml:"enabled"`
	ServUrl      string `yaml:"server-url"`
	AuthToken    string `yaml:"auth-token"`
	Organisation string `yaml:"organisation"`
	Bucket       string `yaml:"bucket"`
	Interval     int    `yaml:"interval"` // in seconds
}

// service that is being used when influxdb is disabled
type disabledService struct{}

func (ds *disabledService) ObservationCount(table string, count int) {
	return
}

func (ds *disabledService) VerdictCount(outcome string, count int) {
	return
}

func (ds *disabledService) QuarantineCount(reason string) {
	return
}

func (ds *disabledService) LiveProbe(consistent bool) {
	return
}

func (ds *disabledService) CacheSize(cacheName string, c *lru.Cache, total int) {
	return
}

func (ds *disabledService) Close() error {
	return nil
}

func NewInfluxService(opts InfluxOpts) InfluxService {
	if !opts.Enabled {
		return &disabledService{}
	}

	client := influxdb2.NewClient(opts.ServUrl, opts.AuthToken)
	api := client.WriteAPI(opts.Organisation, opts.Bucket)

	return NewInfluxServiceWithClient(client, api, opts.Interval)
}

func NewInfluxServiceWithClient(client influxdb2.Client, api influxapi.WriteAPI, interval int) InfluxService {
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	done := make(chan bool)

	is := influxService{
		client:       client,
		api:          api,
		done:         done,
		observations: map[string]int{},
		verdicts:     map[string]int{},
		quarantined:  map[string]int{},
		liveProbes:   map[bool]int{},
		cacheSize:    map[string]cacheInfo{},
		ticker:       ticker,
		m:            &sync.Mutex{},
	}

	go func() {
		// write to influxdb at interval
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				is.write()
			}
		}
	}()

	return &is
}
