package store

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CSVConnection writes each table to its own file in a target directory.
// It supports neither queries nor concurrent writers, so a pipeline running
// against it cannot generate verdicts and runs single-threaded.
type CSVConnection struct {
	dir     string
	files   map[string]*os.File
	writers map[string]*csv.Writer
}

func NewCSVConnection(dir string) (*CSVConnection, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	return &CSVConnection{
		dir:     dir,
		files:   map[string]*os.File{},
		writers: map[string]*csv.Writer{},
	}, nil
}

func (c *CSVConnection) WriteRow(table string, row Row) error {
	w, ok := c.writers[table]
	if !ok {
		f, err := os.Create(filepath.Join(c.dir, table+".csv"))
		if err != nil {
			return errors.Wrapf(err, "create csv file for %s", table)
		}
		w = csv.NewWriter(f)
		if err := w.Write(row.Names()); err != nil {
			return errors.Wrapf(err, "write csv header for %s", table)
		}
		c.files[table] = f
		c.writers[table] = w
	}

	record := make([]string, 0, len(row))
	for _, v := range row.Values() {
		record = append(record, csvString(v))
	}
	return w.Write(record)
}

func (c *CSVConnection) Execute(query string, args ...interface{}) ([][]interface{}, error) {
	return nil, errors.New("csv store does not support queries")
}

func (c *CSVConnection) Exec(query string, args ...interface{}) error {
	return errors.New("csv store does not support statements")
}

func (c *CSVConnection) Flush() error {
	for table, w := range c.writers {
		w.Flush()
		if err := w.Error(); err != nil {
			return errors.Wrapf(err, "flush csv writer for %s", table)
		}
	}
	return nil
}

func (c *CSVConnection) SupportsQueries() bool { return false }

func (c *CSVConnection) ConcurrentWriters() bool { return false }

func (c *CSVConnection) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	for _, f := range c.files {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
