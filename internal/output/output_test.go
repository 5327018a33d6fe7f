package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toposcope/internal/topology"
)

func sampleTopology() (*topology.Topology, map[string]*topology.HostData) {
	data := map[string]*topology.HostData{
		"h1": {
			Hostname: "node-one",
			Interfaces: map[string]*topology.InterfaceInfo{
				"eth0": {Name: "eth0", MAC: "aa:aa:aa:aa:aa:01", State: "up"},
			},
			LinkStates: map[string]*topology.LinkState{},
			Neighbors: map[string][]topology.Neighbor{
				"eth0": {{LocalInterface: "eth0", DiscoveryMethod: "arp", RemoteMAC: "bb:bb:bb:bb:bb:02"}},
			},
		},
		"h2": {
			Hostname: "node-two",
			Interfaces: map[string]*topology.InterfaceInfo{
				"eth1": {Name: "eth1", MAC: "bb:bb:bb:bb:bb:02", State: "up"},
			},
			LinkStates: map[string]*topology.LinkState{},
			Neighbors:  map[string][]topology.Neighbor{},
		},
	}
	return topology.Infer(data), data
}

func TestBuildDocument(t *testing.T) {
	topo, data := sampleTopology()
	issues := topology.Validate(topo, data, topology.DefaultValidateOptions())

	doc := BuildDocument(topo, issues)

	if len(doc.Hosts) != 2 {
		t.Errorf("expected 2 hosts, got %d", len(doc.Hosts))
	}
	if doc.Hosts["h1"].Hostname != "node-one" || doc.Hosts["h1"].InterfaceCount != 1 {
		t.Errorf("unexpected host summary: %+v", doc.Hosts["h1"])
	}
	if len(doc.Links) != 1 {
		t.Errorf("expected 1 link, got %d", len(doc.Links))
	}
	if doc.Summary["host_count"] != 2 || doc.Summary["link_count"] != 1 {
		t.Errorf("unexpected summary: %v", doc.Summary)
	}
	if doc.Summary["unidirectional_links"] != 1 {
		t.Errorf("expected 1 unidirectional link, got %d", doc.Summary["unidirectional_links"])
	}
	if doc.Summary["issue_count"] != len(issues) {
		t.Errorf("issue_count %d != %d", doc.Summary["issue_count"], len(issues))
	}
	if doc.Summary["warning_count"] != 1 {
		t.Errorf("expected 1 warning, got %d", doc.Summary["warning_count"])
	}
}

func TestBuildDocumentWithoutIssues(t *testing.T) {
	topo, _ := sampleTopology()
	doc := BuildDocument(topo, nil)

	if doc.ValidationIssues != nil {
		t.Error("expected no validation_issues when issues are nil")
	}
	if _, ok := doc.Summary["issue_count"]; ok {
		t.Error("expected no issue_count when issues are nil")
	}
}

func TestMarshalJSONDeterministic(t *testing.T) {
	topo, data := sampleTopology()
	issues := topology.Validate(topo, data, topology.DefaultValidateOptions())

	first, err := MarshalJSON(topo, issues)
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	second, err := MarshalJSON(topo, issues)
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("expected deterministic JSON output")
	}

	var decoded map[string]any
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for _, key := range []string{"hosts", "links", "summary", "validation_issues"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing document key %q", key)
		}
	}
}

func TestWriteJSONCreatesParentDir(t *testing.T) {
	topo, _ := sampleTopology()
	path := filepath.Join(t.TempDir(), "nested", "dir", "topology.json")

	if err := WriteJSON(topo, nil, path); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("output file not written: %v", err)
	}
}

func TestRenderText(t *testing.T) {
	topo, data := sampleTopology()
	issues := topology.Validate(topo, data, topology.DefaultValidateOptions())

	text := RenderText(topo, issues)

	for _, want := range []string{
		"NETWORK TOPOLOGY REPORT",
		"Hosts:              2",
		"h1 (node-one)",
		"- eth0: aa:aa:aa:aa:aa:01 (up)",
		"h1:eth0 ---> h2:eth1",
		"Discovered via: arp",
		"VALIDATION ISSUES",
		"[WARN] h1:eth0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

func TestRenderTextNoLinks(t *testing.T) {
	topo := topology.Infer(map[string]*topology.HostData{
		"h1": {Interfaces: map[string]*topology.InterfaceInfo{}, Neighbors: map[string][]topology.Neighbor{}},
	})
	text := RenderText(topo, nil)
	if !strings.Contains(text, "No links discovered") {
		t.Error("expected no-links placeholder")
	}
}

func TestRenderASCII(t *testing.T) {
	topo, data := sampleTopology()
	issues := topology.Validate(topo, data, topology.DefaultValidateOptions())

	art := RenderASCII(topo, issues)

	for _, want := range []string{
		"NETWORK TOPOLOGY",
		"h1 (node-one)",
		"-> h2:eth1",
		"Unidirectional Links",
		"[arp]",
		"VALIDATION ISSUES",
	} {
		if !strings.Contains(art, want) {
			t.Errorf("ascii output missing %q", want)
		}
	}
}

func TestFormatIssueSummary(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := FormatIssueSummary(nil); !strings.Contains(got, "No validation issues") {
			t.Errorf("unexpected summary: %s", got)
		}
	})

	t.Run("counts by severity", func(t *testing.T) {
		issues := []topology.Issue{
			{Severity: topology.SeverityWarning},
			{Severity: topology.SeverityWarning},
			{Severity: topology.SeverityInfo},
		}
		got := FormatIssueSummary(issues)
		if !strings.Contains(got, "3 issue(s)") || !strings.Contains(got, "2 warning") || !strings.Contains(got, "1 info") {
			t.Errorf("unexpected summary: %s", got)
		}
	})
}
