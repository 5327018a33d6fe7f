package topology

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Severity ranks a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	}
	return 3
}

// Issue is a ranked finding about topology or telemetry inconsistency.
// It is an output value, never mutated after creation.
type Issue struct {
	Severity  Severity       `json:"severity"`
	Rule      string         `json:"rule"`
	Host      string         `json:"host"`
	Interface string         `json:"interface"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// ValidateOptions configures the threshold-gated checks and the no-link
// suppression policy.
type ValidateOptions struct {
	// ErrorThreshold gates the RX/TX error counter checks; a counter must
	// exceed (not reach) the threshold to raise an issue.
	ErrorThreshold int64
	// DroppedThreshold gates the RX/TX dropped counter checks.
	DroppedThreshold int64
	// SuppressWhenLinked skips the no-link-detected check for interfaces
	// that already have a topology link, even an unconfirmed one.
	SuppressWhenLinked bool
}

// DefaultValidateOptions returns the standard thresholds.
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		ErrorThreshold:     100,
		DroppedThreshold:   1000,
		SuppressWhenLinked: true,
	}
}

// Validate runs the fixed rule battery over the topology and the raw
// per-host telemetry. Rules scan independently and never short-circuit
// each other; missing or malformed fields fail only the specific
// sub-check they belong to. The result is stably sorted by
// (severity, host, interface), with rule-declaration order breaking ties.
func Validate(topo *Topology, hostData map[string]*HostData, opts ValidateOptions) []Issue {
	var issues []Issue

	issues = append(issues, checkUnidirectionalLinks(topo)...)
	issues = append(issues, checkLinkMismatches(topo, hostData)...)
	issues = append(issues, checkNoLinkDetected(topo, hostData, opts)...)
	issues = append(issues, checkCounters(hostData, opts)...)

	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return a.Interface < b.Interface
	})

	errors, warnings := 0, 0
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		}
	}
	log.WithFields(log.Fields{
		"issues":   len(issues),
		"errors":   errors,
		"warnings": warnings,
	}).Info("validation complete")

	return issues
}

// checkUnidirectionalLinks flags links only one side observed, attributed
// to the canonical first endpoint.
func checkUnidirectionalLinks(topo *Topology) []Issue {
	var issues []Issue
	for _, link := range topo.Links {
		if link.Bidirectional {
			continue
		}
		issues = append(issues, Issue{
			Severity:  SeverityWarning,
			Rule:      "unidirectional_link",
			Host:      link.PortA.Host,
			Interface: link.PortA.Interface,
			Message: fmt.Sprintf("Unidirectional link to %s:%s - only one side observes the connection",
				link.PortB.Host, link.PortB.Interface),
			Details: map[string]any{
				"remote_host":       link.PortB.Host,
				"remote_interface":  link.PortB.Interface,
				"discovery_methods": link.DiscoveryMethods,
			},
		})
	}
	return issues
}

// checkLinkMismatches compares speed and duplex across link endpoints.
// Comparison is plain string equality; no unit normalization.
func checkLinkMismatches(topo *Topology, hostData map[string]*HostData) []Issue {
	var issues []Issue
	for _, link := range topo.Links {
		stateA := linkStateFor(hostData, link.PortA.Host, link.PortA.Interface)
		stateB := linkStateFor(hostData, link.PortB.Host, link.PortB.Interface)
		if stateA == nil || stateB == nil {
			continue
		}

		if stateA.Speed != "" && stateB.Speed != "" && stateA.Speed != stateB.Speed {
			issues = append(issues, Issue{
				Severity:  SeverityWarning,
				Rule:      "speed_mismatch",
				Host:      link.PortA.Host,
				Interface: link.PortA.Interface,
				Message: fmt.Sprintf("Speed mismatch with %s:%s: %s vs %s",
					link.PortB.Host, link.PortB.Interface, stateA.Speed, stateB.Speed),
				Details: map[string]any{
					"local_speed":      stateA.Speed,
					"remote_speed":     stateB.Speed,
					"remote_host":      link.PortB.Host,
					"remote_interface": link.PortB.Interface,
				},
			})
		}

		if stateA.Duplex != "" && stateB.Duplex != "" && stateA.Duplex != stateB.Duplex {
			issues = append(issues, Issue{
				Severity:  SeverityWarning,
				Rule:      "duplex_mismatch",
				Host:      link.PortA.Host,
				Interface: link.PortA.Interface,
				Message: fmt.Sprintf("Duplex mismatch with %s:%s: %s vs %s",
					link.PortB.Host, link.PortB.Interface, stateA.Duplex, stateB.Duplex),
				Details: map[string]any{
					"local_duplex":     stateA.Duplex,
					"remote_duplex":    stateB.Duplex,
					"remote_host":      link.PortB.Host,
					"remote_interface": link.PortB.Interface,
				},
			})
		}
	}
	return issues
}

// checkNoLinkDetected flags administratively-up interfaces with no carrier,
// no ethtool link, and no topology link at all.
func checkNoLinkDetected(topo *Topology, hostData map[string]*HostData, opts ValidateOptions) []Issue {
	var issues []Issue
	for _, hostID := range sortedKeys(hostData) {
		data := hostData[hostID]
		for _, ifaceName := range sortedKeys(data.Interfaces) {
			if data.Interfaces[ifaceName].State != "up" {
				continue
			}

			linkDetected, carrier := false, false
			if state, ok := data.LinkStates[ifaceName]; ok && state != nil {
				linkDetected = state.LinkDetected
				carrier = state.Carrier
			}
			if linkDetected || carrier {
				continue
			}

			if opts.SuppressWhenLinked && topo.LinkForInterface(hostID, ifaceName) != nil {
				continue
			}

			issues = append(issues, Issue{
				Severity:  SeverityInfo,
				Rule:      "no_link_detected",
				Host:      hostID,
				Interface: ifaceName,
				Message:   "Interface is up but no link detected and no neighbors found",
			})
		}
	}
	return issues
}

// checkCounters raises one issue per exceeded counter. Nil counters were
// never collected and are skipped, not treated as zero.
func checkCounters(hostData map[string]*HostData, opts ValidateOptions) []Issue {
	var issues []Issue
	for _, hostID := range sortedKeys(hostData) {
		data := hostData[hostID]
		for _, ifaceName := range sortedKeys(data.LinkStates) {
			state := data.LinkStates[ifaceName]
			if state == nil {
				continue
			}
			stats := state.Stats

			issues = appendCounterIssue(issues, hostID, ifaceName, SeverityWarning,
				"High RX error count", "rx_errors", stats.RxErrors, opts.ErrorThreshold)
			issues = appendCounterIssue(issues, hostID, ifaceName, SeverityWarning,
				"High TX error count", "tx_errors", stats.TxErrors, opts.ErrorThreshold)
			issues = appendCounterIssue(issues, hostID, ifaceName, SeverityInfo,
				"High RX dropped count", "rx_dropped", stats.RxDropped, opts.DroppedThreshold)
			issues = appendCounterIssue(issues, hostID, ifaceName, SeverityInfo,
				"High TX dropped count", "tx_dropped", stats.TxDropped, opts.DroppedThreshold)
		}
	}
	return issues
}

func appendCounterIssue(issues []Issue, host, iface string, severity Severity,
	message, counter string, value *int64, threshold int64) []Issue {
	if value == nil || *value <= threshold {
		return issues
	}
	return append(issues, Issue{
		Severity:  severity,
		Rule:      "high_" + counter,
		Host:      host,
		Interface: iface,
		Message:   fmt.Sprintf("%s: %d", message, *value),
		Details: map[string]any{
			counter:     *value,
			"threshold": threshold,
		},
	})
}

// linkStateFor looks up the link state for a specific port, or nil.
func linkStateFor(hostData map[string]*HostData, host, iface string) *LinkState {
	data, ok := hostData[host]
	if !ok {
		return nil
	}
	return data.LinkStates[iface]
}
