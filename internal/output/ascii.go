package output

import (
	"fmt"
	"strings"

	"toposcope/internal/topology"
)

// peer records the far side of a connection for the host-box view.
type peer struct {
	host          string
	iface         string
	bidirectional bool
}

// RenderASCII draws the topology as box-art: one box per host with
// per-interface connection state, then a link diagram grouped by
// confirmation status.
func RenderASCII(topo *topology.Topology, issues []topology.Issue) string {
	var b strings.Builder

	connections := make(map[[2]string]peer)
	for _, link := range topo.Links {
		connections[[2]string{link.PortA.Host, link.PortA.Interface}] = peer{
			host: link.PortB.Host, iface: link.PortB.Interface, bidirectional: link.Bidirectional,
		}
		connections[[2]string{link.PortB.Host, link.PortB.Interface}] = peer{
			host: link.PortA.Host, iface: link.PortA.Interface, bidirectional: link.Bidirectional,
		}
	}

	b.WriteString("+" + strings.Repeat("=", 62) + "+\n")
	b.WriteString("|" + center("NETWORK TOPOLOGY", 62) + "|\n")
	b.WriteString("+" + strings.Repeat("=", 62) + "+\n\n")

	summary := topo.Summary()
	fmt.Fprintf(&b, "  Hosts: %d  |  Links: %d  |  Bidirectional: %d  |  Unidirectional: %d\n\n",
		summary.HostCount, summary.LinkCount, summary.BidirectionalLinks, summary.UnidirectionalLinks)

	for _, hostID := range topo.HostIDs() {
		drawHostBox(&b, topo.Hosts[hostID], connections)
		b.WriteString("\n")
	}

	b.WriteString("+" + strings.Repeat("-", 62) + "+\n")
	b.WriteString("|" + center("LINK DIAGRAM", 62) + "|\n")
	b.WriteString("+" + strings.Repeat("-", 62) + "+\n\n")
	drawLinkDiagram(&b, topo)

	if len(issues) > 0 {
		b.WriteString("\n")
		b.WriteString("+" + strings.Repeat("-", 62) + "+\n")
		b.WriteString("|" + center("VALIDATION ISSUES", 62) + "|\n")
		b.WriteString("+" + strings.Repeat("-", 62) + "+\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "  %s [%s] %s:%s\n",
				asciiMarker(issue.Severity), strings.ToUpper(string(issue.Severity)),
				issue.Host, issue.Interface)
			fmt.Fprintf(&b, "      %s\n", issue.Message)
		}
	}

	return b.String()
}

func drawHostBox(b *strings.Builder, host *topology.HostInfo, connections map[[2]string]peer) {
	title := fmt.Sprintf(" %s (%s) ", host.HostID, host.Hostname)
	width := 58
	if len(title)+4 > width {
		width = len(title) + 4
	}

	b.WriteString("+" + strings.Repeat("-", width) + "+\n")
	b.WriteString("|" + center(title, width) + "|\n")
	b.WriteString("+" + strings.Repeat("-", width) + "+\n")

	names := host.InterfaceNames()
	if len(names) == 0 {
		b.WriteString("|" + center("(no interfaces)", width) + "|\n")
	}

	for _, name := range names {
		iface := host.Interfaces[name]

		var connStr, icon string
		if p, ok := connections[[2]string{host.HostID, name}]; ok {
			arrow := "->"
			if p.bidirectional {
				arrow = "<->"
			}
			connStr = fmt.Sprintf("%s %s:%s", arrow, p.host, p.iface)
			icon = "*"
		} else {
			connStr = "(no link)"
			icon = "o"
		}

		stateIcon := "?"
		switch iface.State {
		case "up":
			stateIcon = "^"
		case "down":
			stateIcon = "v"
		}

		left := fmt.Sprintf("  %s %s", icon, name)
		right := fmt.Sprintf("%s  %s", connStr, stateIcon)
		padding := width - len(left) - len(right)
		if padding < 1 {
			padding = 1
		}

		line := left + strings.Repeat(" ", padding) + right
		if len(line) > width {
			line = line[:width]
		}
		fmt.Fprintf(b, "|%-*s|\n", width, line)
	}

	b.WriteString("+" + strings.Repeat("-", width) + "+\n")
}

func drawLinkDiagram(b *strings.Builder, topo *topology.Topology) {
	if len(topo.Links) == 0 {
		b.WriteString("  (no links discovered)\n")
		return
	}

	var bidir, unidir []*topology.Link
	for _, link := range topo.Links {
		if link.Bidirectional {
			bidir = append(bidir, link)
		} else {
			unidir = append(unidir, link)
		}
	}

	if len(bidir) > 0 {
		b.WriteString("  Bidirectional Links (confirmed both directions):\n")
		b.WriteString("  " + strings.Repeat("-", 50) + "\n")
		for _, link := range bidir {
			writeLinkLine(b, link, "<->")
		}
		b.WriteString("\n")
	}

	if len(unidir) > 0 {
		b.WriteString("  Unidirectional Links (seen from one side only):\n")
		b.WriteString("  " + strings.Repeat("-", 50) + "\n")
		for _, link := range unidir {
			writeLinkLine(b, link, "->")
		}
	}
}

func writeLinkLine(b *strings.Builder, link *topology.Link, arrow string) {
	left := fmt.Sprintf("%s:%s", link.PortA.Host, link.PortA.Interface)
	right := fmt.Sprintf("%s:%s", link.PortB.Host, link.PortB.Interface)
	fmt.Fprintf(b, "    %25s %s %-25s\n", left, arrow, right)
	fmt.Fprintf(b, "    %25s   +- [%s]\n", "", strings.Join(link.DiscoveryMethods, ", "))
}

func asciiMarker(severity topology.Severity) string {
	switch severity {
	case topology.SeverityError:
		return "x"
	case topology.SeverityWarning:
		return "!"
	case topology.SeverityInfo:
		return "i"
	}
	return "?"
}

func center(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
