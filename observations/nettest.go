package observations

import (
	"github.com/probewatch/probewatch/store"
)

// NettestObservation is the one-per-measurement metadata row, written for
// every measurement regardless of nettest.
type NettestObservation struct {
	Base

	TestName    string
	TestVersion string
	Input       string
}

func (o *NettestObservation) TableName() string { return "obs_nettest" }

func (o *NettestObservation) Row() store.Row {
	return append(o.baseRow(), store.Row{
		{"test_name", o.TestName},
		{"test_version", o.TestVersion},
		{"input", o.Input},
	}...)
}

// Nettest builds the per-measurement metadata observation.
func (b *Builder) Nettest() *NettestObservation {
	return &NettestObservation{
		Base:        b.nextBase("", 0),
		TestName:    b.msmt.TestName,
		TestVersion: b.msmt.TestVersion,
		Input:       b.msmt.Input,
	}
}
