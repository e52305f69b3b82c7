// Package netinfo resolves IP addresses and AS numbers to network ownership
// and geolocation metadata at a given point in time.
package netinfo

import (
	"io/ioutil"
	"net"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ASInfo describes the owner of an autonomous system.
type ASInfo struct {
	ASN       int
	ASOrgName string
	ASCC      string
}

// IPInfo is the lookup result for a single address: the owning AS plus the
// country the address geolocates to.
type IPInfo struct {
	AS ASInfo
	CC string
}

// Resolver looks up network metadata. Both methods return nil when nothing is
// known; the lookup timestamp selects the snapshot of the routing/geo data to
// consult.
type Resolver interface {
	LookupIP(ts time.Time, ip string) *IPInfo
	LookupASN(ts time.Time, asn int) *ASInfo
}

type networkEntry struct {
	CIDR string `yaml:"cidr"`
	ASN  int    `yaml:"asn"`
	CC   string `yaml:"cc"`

	ipnet *net.IPNet
}

type asnEntry struct {
	OrgName string `yaml:"org_name"`
	CC      string `yaml:"cc"`
}

type fileConfig struct {
	ASNs     map[int]asnEntry `yaml:"asns"`
	Networks []networkEntry   `yaml:"networks"`
}

// FileDB is a Resolver backed by a static YAML snapshot of prefix-to-ASN and
// ASN-to-organization data. The timestamp argument is ignored: a single
// snapshot serves all days.
type FileDB struct {
	asns     map[int]asnEntry
	networks []networkEntry
}

func NewFileDB(path string) (*FileDB, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read netinfo snapshot")
	}
	var conf fileConfig
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return nil, errors.Wrap(err, "unmarshal netinfo snapshot")
	}
	networks := make([]networkEntry, 0, len(conf.Networks))
	for _, n := range conf.Networks {
		_, ipnet, err := net.ParseCIDR(n.CIDR)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed cidr '%s'", n.CIDR)
		}
		n.ipnet = ipnet
		networks = append(networks, n)
	}
	return &FileDB{asns: conf.ASNs, networks: networks}, nil
}

func (db *FileDB) LookupIP(ts time.Time, ip string) *IPInfo {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil
	}
	var best *networkEntry
	for i := range db.networks {
		n := &db.networks[i]
		if !n.ipnet.Contains(addr) {
			continue
		}
		if best == nil {
			best = n
			continue
		}
		bestOnes, _ := best.ipnet.Mask.Size()
		ones, _ := n.ipnet.Mask.Size()
		if ones > bestOnes {
			best = n
		}
	}
	if best == nil {
		return nil
	}
	info := IPInfo{CC: best.CC, AS: ASInfo{ASN: best.ASN}}
	if as, ok := db.asns[best.ASN]; ok {
		info.AS.ASOrgName = as.OrgName
		info.AS.ASCC = as.CC
	}
	return &info
}

func (db *FileDB) LookupASN(ts time.Time, asn int) *ASInfo {
	as, ok := db.asns[asn]
	if !ok {
		return nil
	}
	return &ASInfo{ASN: asn, ASOrgName: as.OrgName, ASCC: as.CC}
}
