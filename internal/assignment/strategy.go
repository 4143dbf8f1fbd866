package assignment

import (
	"fmt"
	"strings"
)

// Strategy selects how a technician is picked from a support group.
type Strategy string

const (
	RoundRobin Strategy = "round_robin"
	LeastLoad  Strategy = "least_load"
	Random     Strategy = "random"

	legacyLoadBalancing = "load_balancing"
)

// ParseStrategy normalizes a stored or user supplied strategy name.
// "load_balancing" is accepted as an alias of least_load.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoundRobin):
		return RoundRobin, nil
	case string(LeastLoad), legacyLoadBalancing:
		return LeastLoad, nil
	case string(Random):
		return Random, nil
	default:
		return "", fmt.Errorf("unknown load balance type %q", raw)
	}
}

func (s Strategy) String() string {
	return string(s)
}
