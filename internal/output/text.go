package output

import (
	"fmt"
	"strings"

	"toposcope/internal/topology"
)

// RenderText formats the topology as a human-readable report.
func RenderText(topo *topology.Topology, issues []topology.Issue) string {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("NETWORK TOPOLOGY REPORT\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	summary := topo.Summary()
	b.WriteString("SUMMARY\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(&b, "  Hosts:              %d\n", summary.HostCount)
	fmt.Fprintf(&b, "  Total Links:        %d\n", summary.LinkCount)
	fmt.Fprintf(&b, "  Bidirectional:      %d\n", summary.BidirectionalLinks)
	fmt.Fprintf(&b, "  Unidirectional:     %d\n\n", summary.UnidirectionalLinks)

	b.WriteString("HOSTS\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, hostID := range topo.HostIDs() {
		host := topo.Hosts[hostID]
		fmt.Fprintf(&b, "  %s (%s)\n", hostID, host.Hostname)
		fmt.Fprintf(&b, "    Interfaces: %d\n", len(host.Interfaces))
		for _, name := range host.InterfaceNames() {
			iface := host.Interfaces[name]
			mac := iface.MAC
			if mac == "" {
				mac = "unknown"
			}
			state := iface.State
			if state == "" {
				state = "unknown"
			}
			fmt.Fprintf(&b, "      - %s: %s (%s)\n", name, mac, state)
		}
	}
	b.WriteString("\n")

	b.WriteString("LINKS\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	if len(topo.Links) == 0 {
		b.WriteString("  No links discovered\n")
	} else {
		for _, link := range topo.Links {
			direction := "--->"
			if link.Bidirectional {
				direction = "<-->"
			}
			fmt.Fprintf(&b, "  %s:%s %s %s:%s\n",
				link.PortA.Host, link.PortA.Interface,
				direction,
				link.PortB.Host, link.PortB.Interface)
			fmt.Fprintf(&b, "    Discovered via: %s\n", strings.Join(link.DiscoveryMethods, ", "))
		}
	}
	b.WriteString("\n")

	if len(issues) > 0 {
		b.WriteString("VALIDATION ISSUES\n")
		b.WriteString(strings.Repeat("-", 40) + "\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "  %s %s:%s\n", severityMarker(issue.Severity), issue.Host, issue.Interface)
			fmt.Fprintf(&b, "    %s\n", issue.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat("=", 60) + "\n")

	return b.String()
}

func severityMarker(severity topology.Severity) string {
	switch severity {
	case topology.SeverityError:
		return "[ERROR]"
	case topology.SeverityWarning:
		return "[WARN]"
	case topology.SeverityInfo:
		return "[INFO]"
	}
	return "[?]"
}

// FormatIssueSummary renders a short per-severity issue tally for
// printing after the main output.
func FormatIssueSummary(issues []topology.Issue) string {
	if len(issues) == 0 {
		return "No validation issues found"
	}

	counts := map[topology.Severity]int{}
	for _, issue := range issues {
		counts[issue.Severity]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Validation found %d issue(s):", len(issues))
	for _, severity := range []topology.Severity{topology.SeverityError, topology.SeverityWarning, topology.SeverityInfo} {
		if counts[severity] > 0 {
			fmt.Fprintf(&b, " %d %s", counts[severity], severity)
		}
	}
	return b.String()
}
