// Package store provides the persistence primitives of the pipeline: an
// append-only row writer plus a generic query interface used by the baseline
// and verdict engine.
package store

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/probewatch/probewatch/store/models"
)

// Connection is the destination for observation, verdict and cache rows.
//
// WriteRow appends one row; batching is an implementation concern and Flush
// forces any buffered rows out. Execute runs a query and returns generic
// rows; Exec runs a statement without results. Destinations that cannot be
// queried report so via SupportsQueries, and destinations without support
// for concurrent writers force the pipeline parallelism down to one.
type Connection interface {
	WriteRow(table string, row Row) error
	Execute(query string, args ...interface{}) ([][]interface{}, error)
	Exec(query string, args ...interface{}) error
	Flush() error
	SupportsQueries() bool
	ConcurrentWriters() bool
	Close() error
}

type Config struct {
	User       string     `yaml:"user"`
	Password   string     `yaml:"password"`
	Host       string     `yaml:"host"`
	Port       int        `yaml:"port"`
	DBName     string     `yaml:"dbname"`
	Debug      bool       `yaml:"debug"`
	BatchSize  int        `yaml:"batch-size"`
	InfluxOpts InfluxOpts `yaml:"influxdb"`
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// Migrate creates or updates the observation, verdict and cache tables with
// gorm's auto-migrate functionality.
func Migrate(conf Config) error {
	g, err := gorm.Open("postgres", conf.DSN())
	if err != nil {
		return errors.Wrap(err, "open gorm database")
	}
	defer g.Close()

	migrateExamples := []interface{}{
		&models.ObsNettest{},
		&models.ObsDNS{},
		&models.ObsTCP{},
		&models.ObsTLS{},
		&models.ObsHTTP{},
		&models.Verdict{},
		&models.DNSConsistencyTLSBaseline{},
	}
	for _, ex := range migrateExamples {
		if err := g.AutoMigrate(ex).Error; err != nil {
			return errors.Wrap(err, "migrate models")
		}
	}
	return nil
}
