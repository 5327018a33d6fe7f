// Package output renders an inferred topology and its validation issues
// as a JSON document, a human-readable text report, or an ASCII diagram.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"toposcope/internal/topology"
)

// HostSummary is the per-host entry in the JSON document.
type HostSummary struct {
	HostID         string   `json:"host_id"`
	Hostname       string   `json:"hostname"`
	InterfaceCount int      `json:"interface_count"`
	Interfaces     []string `json:"interfaces"`
}

// Document is the serialized form of one inference run.
type Document struct {
	Hosts            map[string]HostSummary `json:"hosts"`
	Links            []*topology.Link       `json:"links"`
	Summary          map[string]int         `json:"summary"`
	ValidationIssues []topology.Issue       `json:"validation_issues,omitempty"`
}

// BuildDocument assembles the serializable document. When issues is
// non-nil the summary also carries issue counts; map keys marshal in
// sorted order, so repeated runs over identical input serialize
// byte-for-byte identically.
func BuildDocument(topo *topology.Topology, issues []topology.Issue) *Document {
	summary := topo.Summary()

	doc := &Document{
		Hosts: make(map[string]HostSummary, len(topo.Hosts)),
		Links: topo.Links,
		Summary: map[string]int{
			"host_count":           summary.HostCount,
			"link_count":           summary.LinkCount,
			"bidirectional_links":  summary.BidirectionalLinks,
			"unidirectional_links": summary.UnidirectionalLinks,
		},
	}
	if doc.Links == nil {
		doc.Links = []*topology.Link{}
	}

	for id, host := range topo.Hosts {
		doc.Hosts[id] = HostSummary{
			HostID:         host.HostID,
			Hostname:       host.Hostname,
			InterfaceCount: len(host.Interfaces),
			Interfaces:     host.InterfaceNames(),
		}
	}

	if issues != nil {
		doc.ValidationIssues = issues
		errors, warnings := 0, 0
		for _, issue := range issues {
			switch issue.Severity {
			case topology.SeverityError:
				errors++
			case topology.SeverityWarning:
				warnings++
			}
		}
		doc.Summary["issue_count"] = len(issues)
		doc.Summary["error_count"] = errors
		doc.Summary["warning_count"] = warnings
	}

	return doc
}

// MarshalJSON renders the document with stable indentation.
func MarshalJSON(topo *topology.Topology, issues []topology.Issue) ([]byte, error) {
	return json.MarshalIndent(BuildDocument(topo, issues), "", "  ")
}

// WriteJSON writes the document to a file, creating parent directories.
func WriteJSON(topo *topology.Topology, issues []topology.Issue, path string) error {
	data, err := MarshalJSON(topo, issues)
	if err != nil {
		return fmt.Errorf("marshal topology: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}
