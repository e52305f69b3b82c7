package main

import (
	"flag"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/probewatch/probewatch/config"
	"github.com/probewatch/probewatch/fingerprints"
	"github.com/probewatch/probewatch/netinfo"
	"github.com/probewatch/probewatch/processing"
	"github.com/probewatch/probewatch/store"
	"github.com/probewatch/probewatch/verdicts"
)

func splitFlag(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func dateInterval(start, end time.Time) []time.Time {
	var days []time.Time
	for day := start; day.Before(end); day = day.Add(24 * time.Hour) {
		days = append(days, day)
	}
	return days
}

func main() {
	confFile := flag.String("config", "config/config.yml", "location of configuration file")
	csvDir := flag.String("csv-dir", "", "write observations to CSV files in this directory instead of postgres")
	probeCC := flag.String("probe-cc", "", "two letter country code, can be comma separated for a list (eg. IT,US); empty processes all countries")
	testName := flag.String("test-name", "", "test name to process, can be comma separated for a list (eg. web_connectivity,tor); empty processes all test names")
	startDay := flag.String("start-day", "", "first day to process (inclusive), format 2006-01-02")
	endDay := flag.String("end-day", "", "day at which to stop processing (exclusive), format 2006-01-02")
	parallelism := flag.Int("parallelism", 1, "number of workers; only effective when writing to a database")
	startAtIdx := flag.Int("start-at-idx", 0, "skip measurements before this index within each day")
	onlyVerdicts := flag.Bool("only-verdicts", false, "skip ingestion and only generate verdicts")
	skipVerdicts := flag.Bool("skip-verdicts", false, "ingest observations without generating verdicts")
	fastFail := flag.Bool("fast-fail", false, "abort on the first malformed measurement instead of quarantining it")
	migrate := flag.Bool("migrate", false, "create or update the database schema before processing")
	flag.Parse()

	conf, err := config.ReadConfig(*confFile)
	if err != nil {
		log.Fatal().Msgf("error while reading configuration: %s", err)
	}

	start, err := time.Parse("2006-01-02", *startDay)
	if err != nil {
		log.Fatal().Msgf("failed to parse start day: %s", err)
	}
	end, err := time.Parse("2006-01-02", *endDay)
	if err != nil {
		log.Fatal().Msgf("failed to parse end day: %s", err)
	}

	var h *config.SentryHub
	if conf.Sentry.Enabled {
		h, err = config.NewSentryHub(conf)
		if err != nil {
			log.Fatal().Msgf("error while creating sentry hub: %s", err)
		}
	}
	tags := map[string]string{
		"app": "pipeline",
	}
	el := config.NewErrLogChain(config.NewZeroLogger(tags))
	if conf.Sentry.Enabled {
		el.Add(h.GetLogger(tags))
	}

	if *migrate && *csvDir == "" {
		if err := store.Migrate(conf.Store); err != nil {
			log.Fatal().Msgf("failed to migrate database: %s", err)
		}
	}

	influx := store.NewInfluxService(conf.Store.InfluxOpts)
	defer influx.Close()

	quarantineDir := conf.Processing.QuarantineDir
	if quarantineDir == "" {
		quarantineDir = "quarantine"
	}
	quarantine, err := processing.NewQuarantine(quarantineDir, influx)
	if err != nil {
		log.Fatal().Msgf("failed to open quarantine sink: %s", err)
	}
	defer quarantine.Close()

	newDeps := func() (processing.Deps, error) {
		var deps processing.Deps

		fpdb, err := fingerprints.Load(conf.Fingerprints.Path)
		if err != nil {
			return deps, err
		}
		fileDB, err := netinfo.NewFileDB(conf.Netinfo.Path)
		if err != nil {
			return deps, err
		}
		cacheSize := conf.Netinfo.CacheSize
		if cacheSize == 0 {
			cacheSize = netinfo.DefaultCacheSize
		}

		var conn store.Connection
		if *csvDir != "" {
			conn, err = store.NewCSVConnection(*csvDir)
		} else {
			conn, err = store.NewPostgresConnection(conf.Store, influx)
		}
		if err != nil {
			return deps, err
		}

		deps = processing.Deps{
			Conn:       conn,
			FpDB:       fpdb,
			Resolver:   netinfo.NewCachingResolver(fileDB, cacheSize),
			Prober:     verdicts.LiveTLSProbe,
			Influx:     influx,
			Quarantine: quarantine,
		}
		return deps, nil
	}

	opts := processing.Options{
		TestNames:    splitFlag(*testName),
		ProbeCCs:     splitFlag(*probeCC),
		StartAtIdx:   *startAtIdx,
		SkipVerdicts: *skipVerdicts,
		OnlyVerdicts: *onlyVerdicts,
		FastFail:     *fastFail,
	}
	if ccs := splitFlag(*probeCC); len(ccs) == 1 {
		opts.VerdictProbeCC = ccs[0]
	}

	cfg := processing.PoolConfig{
		Parallelism: *parallelism,
		Source:      &processing.DirSource{Dir: conf.Processing.MeasurementDir},
		NewDeps:     newDeps,
		Options:     opts,
	}

	if err := processing.Run(dateInterval(start, end), cfg); err != nil {
		el.Log(err, config.LogOptions{Msg: "pipeline run failed"})
		log.Fatal().Msgf("pipeline run failed: %s", err)
	}
}
