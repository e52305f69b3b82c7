package processing

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PoolConfig describes a pipeline run: how to build each worker's
// collaborators and which processing options apply.
type PoolConfig struct {
	Parallelism int
	Source      Source
	NewDeps     func() (Deps, error)
	Options     Options
}

// Run processes the given days on a fixed pool of workers. Days are fed over
// a channel that is closed once all are enqueued; a day is the unit of work
// and is processed to completion within one worker. A destination without
// support for concurrent writers forces the parallelism down to one.
func Run(days []time.Time, cfg PoolConfig) error {
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	deps := make([]Deps, 0, parallelism)
	first, err := cfg.NewDeps()
	if err != nil {
		return err
	}
	deps = append(deps, first)

	if !first.Conn.ConcurrentWriters() && parallelism > 1 {
		log.Info().Msgf("destination supports a single writer only, reducing parallelism from %d to 1", parallelism)
		parallelism = 1
	}
	for len(deps) < parallelism {
		d, err := cfg.NewDeps()
		if err != nil {
			return err
		}
		deps = append(deps, d)
	}

	dayCh := make(chan time.Time)
	go func() {
		for _, day := range days {
			dayCh <- day
		}
		close(dayCh)
	}()

	var m sync.Mutex
	var firstErr error

	wg := sync.WaitGroup{}
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func(d Deps) {
			defer wg.Done()
			for day := range dayCh {
				elapsed, err := ProcessDay(day, cfg.Source, d, cfg.Options)
				if err != nil {
					m.Lock()
					if firstErr == nil {
						firstErr = err
					}
					m.Unlock()
					log.Error().Msgf("processing day %s failed after %s: %s", day.Format("2006-01-02"), elapsed, err)
					return
				}
				log.Info().Msgf("processed day %s in %s", day.Format("2006-01-02"), elapsed)
			}
		}(deps[i])
	}
	wg.Wait()

	for _, d := range deps {
		if err := d.Conn.Close(); err != nil {
			log.Error().Msgf("closing connection: %s", err)
		}
	}
	return firstErr
}
