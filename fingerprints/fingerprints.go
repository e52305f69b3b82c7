// Package fingerprints matches measurement responses against known blockpage
// and false-positive signatures.
package fingerprints

import (
	"bytes"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/probewatch/probewatch/measurement"
)

// Scopes, from narrowest to vaguest:
//   nat  - national level blockpage
//   isp  - ISP level blockpage
//   prod - text pattern of a middlebox product
//   inst - institutional blockpage (school, office)
//   vbw  - vague blocking word
//   fp   - known false positive
const (
	ScopeNational      = "nat"
	ScopeISP           = "isp"
	ScopeProduct       = "prod"
	ScopeInstitutional = "inst"
	ScopeVague         = "vbw"
	ScopeFalsePositive = "fp"
)

// Where a signature is looked for.
const (
	LocationBody   = "body"
	LocationHeader = "header"
	LocationStatus = "status"
	LocationDNS    = "dns"
)

type Fingerprint struct {
	Name              string   `yaml:"name"`
	Scope             string   `yaml:"scope"`
	ExpectedCountries []string `yaml:"expected_countries"`
	LocationFound     string   `yaml:"location_found"`
	Pattern           string   `yaml:"pattern"`
	HeaderName        string   `yaml:"header_name"`
}

// ExpectsCountry reports whether cc is among the countries this signature is
// known to fire in. A signature without expected countries expects none.
func (fp *Fingerprint) ExpectsCountry(cc string) bool {
	for _, c := range fp.ExpectedCountries {
		if c == cc {
			return true
		}
	}
	return false
}

type ruleFile struct {
	Fingerprints []*Fingerprint `yaml:"fingerprints"`
}

// DB is the in-memory signature store. It is immutable after loading, so a
// single instance may be shared across workers.
type DB struct {
	http   []*Fingerprint
	dns    []*Fingerprint
	byName map[string]*Fingerprint
}

func Load(path string) (*DB, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fingerprint rules")
	}
	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, errors.Wrap(err, "unmarshal fingerprint rules")
	}
	return New(rf.Fingerprints), nil
}

func New(fps []*Fingerprint) *DB {
	db := &DB{byName: make(map[string]*Fingerprint)}
	for _, fp := range fps {
		switch fp.LocationFound {
		case LocationDNS:
			db.dns = append(db.dns, fp)
		case LocationBody, LocationHeader, LocationStatus:
			db.http = append(db.http, fp)
		default:
			log.Warn().Msgf("ignoring fingerprint '%s' with unknown location '%s'", fp.Name, fp.LocationFound)
			continue
		}
		db.byName[fp.Name] = fp
	}
	return db
}

// Get returns a previously matched fingerprint by name.
func (db *DB) Get(name string) *Fingerprint {
	return db.byName[name]
}

func (fp *Fingerprint) matchHTTP(resp *measurement.HTTPResponse) bool {
	switch fp.LocationFound {
	case LocationBody:
		return resp.Body != nil && bytes.Contains(resp.Body.Value, []byte(fp.Pattern))
	case LocationHeader:
		for _, h := range resp.HeadersList {
			if strings.EqualFold(h.Key, fp.HeaderName) &&
				strings.HasPrefix(string(h.Value.Value), fp.Pattern) {
				return true
			}
		}
		return false
	case LocationStatus:
		return strconv.Itoa(resp.Code) == fp.Pattern
	}
	return false
}

// MatchHTTP returns every signature matching the response, in rule order.
func (db *DB) MatchHTTP(resp *measurement.HTTPResponse) []*Fingerprint {
	if resp == nil {
		return nil
	}
	var matches []*Fingerprint
	for _, fp := range db.http {
		if fp.matchHTTP(resp) {
			matches = append(matches, fp)
		}
	}
	return matches
}

// MatchDNS returns the first signature matching a DNS answer (IP address or
// CNAME target), or nil.
func (db *DB) MatchDNS(answer string) *Fingerprint {
	if answer == "" {
		return nil
	}
	for _, fp := range db.dns {
		if fp.Pattern == answer {
			return fp
		}
	}
	return nil
}
