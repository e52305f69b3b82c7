package processing

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/probewatch/probewatch/observations"
	"github.com/probewatch/probewatch/store"
)

// dayWindow returns the inclusive timestamp bounds of a calendar day.
func dayWindow(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// DomainsInADay lists the distinct domains with DNS observations on a day,
// optionally restricted to one probe country.
func DomainsInADay(day time.Time, conn store.Connection, probeCC string) ([]string, error) {
	start, end := dayWindow(day)
	q := `SELECT DISTINCT domain_name FROM obs_dns
	WHERE timestamp >= $1
	AND timestamp <= $2`
	args := []interface{}{start, end}
	if probeCC != "" {
		q += " AND probe_cc = $3"
		args = append(args, probeCC)
	}
	rows, err := conn.Execute(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query domains in a day")
	}
	var domains []string
	for _, row := range rows {
		domains = append(domains, columnString(row[0]))
	}
	return domains, nil
}

// GroupBySession splits DNS observations, already ordered by (report_id,
// measurement_uid), into sessions. Grouping is adjacency-only: a new session
// starts exactly when the report id differs from the preceding row's, so a
// report id that reappears non-contiguously opens a fresh session.
func GroupBySession(obsList []*observations.DNSObservation) [][]*observations.DNSObservation {
	var sessions [][]*observations.DNSObservation
	var current []*observations.DNSObservation
	lastReportID := ""
	for _, obs := range obsList {
		if lastReportID != "" && lastReportID != obs.ReportID {
			sessions = append(sessions, current)
			current = []*observations.DNSObservation{obs}
			lastReportID = obs.ReportID
			continue
		}
		current = append(current, obs)
		lastReportID = obs.ReportID
	}
	if len(current) > 0 {
		sessions = append(sessions, current)
	}
	return sessions
}

// DNSObservationsBySession streams a day's DNS observations for one domain,
// ordered by (report_id, measurement_uid), grouped into sessions.
func DNSObservationsBySession(day time.Time, domainName string, conn store.Connection, probeCC string) ([][]*observations.DNSObservation, error) {
	fieldNames := observations.FieldNames(&observations.DNSObservation{})
	start, end := dayWindow(day)

	q := "SELECT " + strings.Join(fieldNames, ",\n") + `
	FROM obs_dns
	WHERE domain_name = $1
	AND timestamp >= $2
	AND timestamp <= $3
	`
	args := []interface{}{domainName, start, end}
	if probeCC != "" {
		q += "AND probe_cc = $4\n"
		args = append(args, probeCC)
	}
	q += "ORDER BY report_id, measurement_uid"

	rows, err := conn.Execute(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query dns observations")
	}

	var obsList []*observations.DNSObservation
	for _, row := range rows {
		obs, err := observations.DNSObservationFromRow(fieldNames, row)
		if err != nil {
			return nil, err
		}
		obsList = append(obsList, obs)
	}
	return GroupBySession(obsList), nil
}

func sessionQuery(table string, fieldNames []string) string {
	return "SELECT " + strings.Join(fieldNames, ",\n") + "\nFROM " + table + `
	WHERE domain_name = $1
	AND timestamp >= $2
	AND timestamp <= $3
	AND report_id = $4`
}

// TCPObservationsInSession fetches one session's TCP observations for a
// day and domain.
func TCPObservationsInSession(day time.Time, domainName, reportID string, conn store.Connection) ([]*observations.TCPObservation, error) {
	fieldNames := observations.FieldNames(&observations.TCPObservation{})
	start, end := dayWindow(day)
	rows, err := conn.Execute(sessionQuery("obs_tcp", fieldNames), domainName, start, end, reportID)
	if err != nil {
		return nil, errors.Wrap(err, "query tcp observations")
	}
	var obsList []*observations.TCPObservation
	for _, row := range rows {
		obs, err := observations.TCPObservationFromRow(fieldNames, row)
		if err != nil {
			return nil, err
		}
		obsList = append(obsList, obs)
	}
	return obsList, nil
}

// TLSObservationsInSession fetches one session's TLS observations.
func TLSObservationsInSession(day time.Time, domainName, reportID string, conn store.Connection) ([]*observations.TLSObservation, error) {
	fieldNames := observations.FieldNames(&observations.TLSObservation{})
	start, end := dayWindow(day)
	rows, err := conn.Execute(sessionQuery("obs_tls", fieldNames), domainName, start, end, reportID)
	if err != nil {
		return nil, errors.Wrap(err, "query tls observations")
	}
	var obsList []*observations.TLSObservation
	for _, row := range rows {
		obs, err := observations.TLSObservationFromRow(fieldNames, row)
		if err != nil {
			return nil, err
		}
		obsList = append(obsList, obs)
	}
	return obsList, nil
}

// HTTPObservationsInSession fetches one session's HTTP observations.
func HTTPObservationsInSession(day time.Time, domainName, reportID string, conn store.Connection) ([]*observations.HTTPObservation, error) {
	fieldNames := observations.FieldNames(&observations.HTTPObservation{})
	start, end := dayWindow(day)
	rows, err := conn.Execute(sessionQuery("obs_http", fieldNames), domainName, start, end, reportID)
	if err != nil {
		return nil, errors.Wrap(err, "query http observations")
	}
	var obsList []*observations.HTTPObservation
	for _, row := range rows {
		obs, err := observations.HTTPObservationFromRow(fieldNames, row)
		if err != nil {
			return nil, err
		}
		obsList = append(obsList, obs)
	}
	return obsList, nil
}

// DeleteSessionVerdicts drops all previously stored verdicts of a session,
// so reprocessing is idempotent: the latest generation wins.
func DeleteSessionVerdicts(reportID string, conn store.Connection) error {
	return conn.Exec("DELETE FROM verdict WHERE report_id = $1", reportID)
}

func columnString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}
