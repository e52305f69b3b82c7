package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/go-pg/pg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBatchSize = 1000
	insertRetries    = 2
)

// retries the given function up to "retries" times in case the function returns an error
func retry(f func() error, retries int) error {
	if err := f(); err != nil {
		if retries == 0 {
			return err
		}
		return retry(f, retries-1)
	}
	return nil
}

// PostgresConnection batches observation and verdict rows into multi-row
// inserts via go-pg, and serves the analytical read path over database/sql.
type PostgresConnection struct {
	db        *pg.DB
	sqlDB     *sql.DB
	batchSize int
	influx    InfluxService

	m       sync.Mutex
	pending map[string][]Row
}

func NewPostgresConnection(conf Config, influx InfluxService) (*PostgresConnection, error) {
	db := pg.Connect(&pg.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		User:     conf.User,
		Password: conf.Password,
		Database: conf.DBName,
	})
	if conf.Debug {
		db.OnQueryProcessed(func(event *pg.QueryProcessedEvent) {
			query, err := event.FormattedQuery()
			if err != nil {
				log.Debug().Msgf("cannot format query: %s", err)
				return
			}
			log.Debug().Msgf("%s [%s]", query, event.Time)
		})
	}

	sqlDB, err := sql.Open("postgres", conf.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "open sql database")
	}

	batchSize := conf.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}

	return &PostgresConnection{
		db:        db,
		sqlDB:     sqlDB,
		batchSize: batchSize,
		influx:    influx,
		pending:   map[string][]Row{},
	}, nil
}

func (c *PostgresConnection) WriteRow(table string, row Row) error {
	c.m.Lock()
	defer c.m.Unlock()

	c.pending[table] = append(c.pending[table], row)
	if len(c.pending[table]) < c.batchSize {
		return nil
	}
	return c.flushTable(table)
}

// flushTable writes the pending rows of a table as a single multi-row
// insert. Caller must hold the mutex.
func (c *PostgresConnection) flushTable(table string) error {
	rows := c.pending[table]
	if len(rows) == 0 {
		return nil
	}
	names := rows[0].Names()

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(") VALUES ")

	placeholder := "(?" + strings.Repeat(", ?", len(names)-1) + ")"
	params := make([]interface{}, 0, len(rows)*len(names))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholder)
		for _, v := range row.Values() {
			params = append(params, flattenValue(v))
		}
	}

	err := retry(func() error {
		_, err := c.db.Exec(sb.String(), params...)
		return err
	}, insertRetries)
	if err != nil {
		return errors.Wrapf(err, "insert %d rows into %s", len(rows), table)
	}
	c.influx.ObservationCount(table, len(rows))
	c.pending[table] = nil
	return nil
}

func (c *PostgresConnection) Flush() error {
	c.m.Lock()
	defer c.m.Unlock()

	for table := range c.pending {
		if err := c.flushTable(table); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs a read query with $n placeholders and returns the result set
// as loosely typed rows.
func (c *PostgresConnection) Execute(query string, args ...interface{}) ([][]interface{}, error) {
	rows, err := c.sqlDB.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "execute query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func (c *PostgresConnection) Exec(query string, args ...interface{}) error {
	_, err := c.sqlDB.Exec(query, args...)
	return err
}

func (c *PostgresConnection) SupportsQueries() bool { return true }

func (c *PostgresConnection) ConcurrentWriters() bool { return true }

func (c *PostgresConnection) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	if err := c.sqlDB.Close(); err != nil {
		return err
	}
	return c.db.Close()
}
