package datautil

import (
	"strings"

	"github.com/probewatch/probewatch/measurement"
)

// FirstHeader returns the value of the first header matching name,
// case-insensitively. A missing header yields nil.
func FirstHeader(name string, headers []measurement.HeaderPair) []byte {
	name = strings.ToLower(name)
	for _, h := range headers {
		if strings.ToLower(h.Key) == name {
			return h.Value.Value
		}
	}
	return nil
}
