package model

import (
	"fmt"
	"strings"
)

// StationKind classifies a station and drives capacity and goal-node rules.
type StationKind int

const (
	StationCharger StationKind = iota
	StationParking
	StationDock
	StationQueue
)

var stationKindNames = map[StationKind]string{
	StationCharger: "charger",
	StationParking: "parking",
	StationDock:    "dock",
	StationQueue:   "queue",
}

func (k StationKind) String() string {
	if s, ok := stationKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("StationKind(%d)", int(k))
}

// ParseStationKind converts a textual kind into a StationKind.
func ParseStationKind(s string) (StationKind, error) {
	for k, name := range stationKindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown station kind %q", ErrConfiguration, s)
}

func (k StationKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *StationKind) UnmarshalText(b []byte) error {
	v, err := ParseStationKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Position is a planar location in site coordinates.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Station is a named point of interest on the route graph.
type Station struct {
	ID       string
	Position Position
	Kind     StationKind
}
