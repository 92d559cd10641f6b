package domain

import (
	"fmt"
	"strings"
	"time"
)

// ServerDescriptor is one entry of the server directory.
type ServerDescriptor struct {
	ID      string `json:"id" yaml:"id"`
	Country string `json:"country" yaml:"country"`
	Address string `json:"address" yaml:"address"` // hostname or IP literal
}

type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolHTTP Protocol = "http"
	ProtocolICMP Protocol = "icmp"
)

// AllProtocols is the canonical column order used by reports.
var AllProtocols = []Protocol{ProtocolTCP, ProtocolHTTP, ProtocolICMP}

func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllProtocols {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}

// Label is the upper-case form used in report headers.
func (p Protocol) Label() string {
	return strings.ToUpper(string(p))
}

// ProbeResult is the verdict of one protocol check against one server.
type ProbeResult struct {
	Protocol Protocol `json:"protocol"`
	Up       bool     `json:"up"`
}

// ServerStatus holds one boolean per configured protocol for a server.
type ServerStatus struct {
	Server  ServerDescriptor  `json:"server" yaml:"server"`
	Results map[Protocol]bool `json:"results" yaml:"results"`
}

// NewServerStatus merges probe results into a status. Protocols without a
// result are recorded as down, so the status is always complete for protocols.
func NewServerStatus(server ServerDescriptor, protocols []Protocol, results []ProbeResult) ServerStatus {
	st := ServerStatus{
		Server:  server,
		Results: make(map[Protocol]bool, len(protocols)),
	}
	for _, p := range protocols {
		st.Results[p] = false
	}
	for _, r := range results {
		if _, ok := st.Results[r.Protocol]; ok {
			st.Results[r.Protocol] = r.Up
		}
	}
	return st
}

func (s ServerStatus) Up(p Protocol) bool {
	return s.Results[p]
}

func (s ServerStatus) AllUp() bool {
	if len(s.Results) == 0 {
		return false
	}
	for _, up := range s.Results {
		if !up {
			return false
		}
	}
	return true
}

func (s ServerStatus) AllDown() bool {
	for _, up := range s.Results {
		if up {
			return false
		}
	}
	return true
}

// Snapshot is the immutable outcome of one scan. Statuses follow the order
// of the descriptors the scan was given.
type Snapshot struct {
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Protocols   []Protocol     `json:"protocols" yaml:"protocols"`
	Statuses    []ServerStatus `json:"statuses" yaml:"statuses"`
}

type Summary struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Servers     int              `json:"servers"`
	AllUp       int              `json:"all_up"`
	AllDown     int              `json:"all_down"`
	UpBy        map[Protocol]int `json:"up_by_protocol"`
}

func (s Snapshot) Summary() Summary {
	sum := Summary{
		GeneratedAt: s.GeneratedAt,
		Servers:     len(s.Statuses),
		UpBy:        make(map[Protocol]int, len(s.Protocols)),
	}
	for _, p := range s.Protocols {
		sum.UpBy[p] = 0
	}
	for _, st := range s.Statuses {
		if st.AllUp() {
			sum.AllUp++
		}
		if st.AllDown() {
			sum.AllDown++
		}
		for p, up := range st.Results {
			if up {
				sum.UpBy[p]++
			}
		}
	}
	return sum
}
