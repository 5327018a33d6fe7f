package collector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"toposcope/internal/topology"
	"toposcope/internal/transport"
)

// Discovery methods, in merge precedence order.
const (
	MethodLLDP  = "lldp"
	MethodARP   = "arp"
	MethodProbe = "probe"
)

// linkLocalBase is the 169.254.0.0/16 prefix used for probe addresses.
const linkLocalBase = "169.254"

var (
	lldpIfaceRe    = regexp.MustCompile(`Interface:\s*(\S+),`)
	lldpChassisRe  = regexp.MustCompile(`ChassisID:\s*mac\s*([0-9a-fA-F:]+)`)
	arpingReplyRe  = regexp.MustCompile(`\[([0-9a-fA-F:]+)\]`)
	arpNeighStates = map[string]bool{"REACHABLE": true, "STALE": true, "DELAY": true, "PROBE": true, "FAILED": true, "PERMANENT": true}
)

// lldpNeighbor is one parsed lldpcli entry.
type lldpNeighbor struct {
	localInterface string
	systemName     string
	portID         string
	portDesc       string
	chassisMAC     string
	mgmtIP         string
}

// arpEntry is one parsed ip-neigh table row.
type arpEntry struct {
	ip    string
	mac   string
	iface string
	state string
}

// NeighborCollector discovers link-layer neighbors via LLDP, the ARP
// table, and optionally active probing with temporary link-local
// addresses.
type NeighborCollector struct {
	runner    transport.Runner
	hostIndex int
}

// NewNeighborCollector creates a neighbor collector. hostIndex
// disambiguates probe addresses across hosts.
func NewNeighborCollector(runner transport.Runner, hostIndex int) *NeighborCollector {
	return &NeighborCollector{runner: runner, hostIndex: hostIndex}
}

// DiscoverOptions selects which discovery methods run.
type DiscoverOptions struct {
	LLDP  bool
	ARP   bool
	Probe bool
}

// DiscoverAll runs the enabled discovery methods over the given
// interfaces and merges the results, deduplicating per interface by
// remote MAC. Earlier methods win: an LLDP entry carrying remote host and
// port names is never replaced by a bare ARP sighting of the same MAC.
func (c *NeighborCollector) DiscoverAll(ctx context.Context, interfaces []string, opts DiscoverOptions) map[string][]topology.Neighbor {
	neighbors := make(map[string][]topology.Neighbor, len(interfaces))
	for _, iface := range interfaces {
		neighbors[iface] = []topology.Neighbor{}
	}

	seen := func(iface, mac string) bool {
		for _, n := range neighbors[iface] {
			if n.RemoteMAC == mac {
				return true
			}
		}
		return false
	}

	if opts.LLDP {
		for iface, entry := range c.discoverLLDP(ctx, interfaces) {
			neighbors[iface] = append(neighbors[iface], topology.Neighbor{
				LocalInterface:  iface,
				DiscoveryMethod: MethodLLDP,
				RemoteMAC:       entry.chassisMAC,
				RemoteHost:      entry.systemName,
				RemoteInterface: firstNonEmpty(entry.portID, entry.portDesc),
				RemoteIP:        entry.mgmtIP,
			})
		}
	}

	if opts.ARP {
		for iface, entries := range c.discoverARP(ctx, interfaces) {
			for _, entry := range entries {
				if seen(iface, entry.mac) {
					continue
				}
				neighbors[iface] = append(neighbors[iface], topology.Neighbor{
					LocalInterface:  iface,
					DiscoveryMethod: MethodARP,
					RemoteMAC:       entry.mac,
					RemoteIP:        entry.ip,
				})
			}
		}
	}

	if opts.Probe {
		for idx, iface := range interfaces {
			for _, found := range c.probeInterface(ctx, iface, idx) {
				if seen(iface, found.mac) {
					continue
				}
				neighbors[iface] = append(neighbors[iface], topology.Neighbor{
					LocalInterface:  iface,
					DiscoveryMethod: MethodProbe,
					RemoteMAC:       found.mac,
					RemoteIP:        found.ip,
				})
			}
		}
	}

	return neighbors
}

// discoverLLDP parses lldpcli show neighbors output. Missing lldpd is
// normal and yields nothing.
func (c *NeighborCollector) discoverLLDP(ctx context.Context, interfaces []string) map[string]*lldpNeighbor {
	neighbors := make(map[string]*lldpNeighbor)

	out, err := c.runner.Run(ctx, "which lldpcli >/dev/null 2>&1 && lldpcli show neighbors 2>/dev/null")
	if err != nil || strings.TrimSpace(out) == "" {
		log.Debug("LLDP not available or no neighbors found")
		return neighbors
	}

	wanted := make(map[string]bool, len(interfaces))
	for _, iface := range interfaces {
		wanted[iface] = true
	}

	var current *lldpNeighbor
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)

		if m := lldpIfaceRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				neighbors[current.localInterface] = current
			}
			if !wanted[m[1]] {
				current = nil
				continue
			}
			current = &lldpNeighbor{localInterface: m[1]}
			continue
		}

		if current == nil {
			continue
		}

		if m := lldpChassisRe.FindStringSubmatch(line); m != nil {
			current.chassisMAC = strings.ToLower(m[1])
			continue
		}

		switch {
		case strings.HasPrefix(line, "SysName:"):
			current.systemName = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		case strings.HasPrefix(line, "PortID:"):
			current.portID = trimPortID(strings.TrimSpace(strings.SplitN(line, ":", 2)[1]))
		case strings.HasPrefix(line, "PortDescr:"):
			current.portDesc = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		case strings.HasPrefix(line, "MgmtIP:"):
			current.mgmtIP = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		}
	}
	if current != nil {
		neighbors[current.localInterface] = current
	}

	return neighbors
}

// trimPortID strips the lldpcli subtype prefix ("ifname eth0" -> "eth0").
func trimPortID(portID string) string {
	for _, prefix := range []string{"ifname ", "ifalias ", "local ", "mac "} {
		if strings.HasPrefix(portID, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(portID, prefix))
		}
	}
	return portID
}

// discoverARP parses the kernel neighbor table.
func (c *NeighborCollector) discoverARP(ctx context.Context, interfaces []string) map[string][]arpEntry {
	entries := make(map[string][]arpEntry)

	out, err := c.runner.Run(ctx, "ip neigh show")
	if err != nil {
		log.WithField("error", err).Warn("ARP table read failed")
		return entries
	}

	wanted := make(map[string]bool, len(interfaces))
	for _, iface := range interfaces {
		wanted[iface] = true
	}

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		entry := arpEntry{ip: fields[0]}
		for i, field := range fields {
			switch {
			case field == "dev" && i+1 < len(fields):
				entry.iface = fields[i+1]
			case field == "lladdr" && i+1 < len(fields):
				entry.mac = strings.ToLower(fields[i+1])
			case arpNeighStates[field]:
				entry.state = field
			}
		}

		if entry.iface == "" || entry.mac == "" || !wanted[entry.iface] {
			continue
		}
		entries[entry.iface] = append(entries[entry.iface], entry)
	}

	return entries
}

type probeResult struct {
	ip  string
	mac string
}

// probeAddress derives a unique link-local address for this host and
// interface: 169.254.<host>.<iface>.
func (c *NeighborCollector) probeAddress(interfaceIndex int) string {
	return fmt.Sprintf("%s.%d.%d", linkLocalBase, (c.hostIndex%254)+1, (interfaceIndex%254)+1)
}

// probeInterface temporarily assigns a link-local address and arpings the
// probe range to solicit replies from directly attached peers. The
// address is removed again even if the sweep fails.
func (c *NeighborCollector) probeInterface(ctx context.Context, iface string, interfaceIndex int) []probeResult {
	var results []probeResult
	tempIP := c.probeAddress(interfaceIndex)

	if _, err := c.runner.Run(ctx, fmt.Sprintf("ip addr add %s/16 dev %s 2>/dev/null", tempIP, iface)); err != nil {
		log.WithFields(log.Fields{"interface": iface, "error": err}).Warn("probe address assignment failed")
		return results
	}
	defer c.runner.Run(ctx, fmt.Sprintf("ip addr del %s/16 dev %s 2>/dev/null", tempIP, iface))

	c.runner.Run(ctx, fmt.Sprintf("ip link set %s up 2>/dev/null", iface))

	selfThird := (c.hostIndex % 254) + 1
	selfFourth := (interfaceIndex % 254) + 1

	for third := 1; third <= 9; third++ {
		for fourth := 1; fourth <= 9; fourth++ {
			if third == selfThird && fourth == selfFourth {
				continue
			}
			if ctx.Err() != nil {
				return results
			}

			target := fmt.Sprintf("%s.%d.%d", linkLocalBase, third, fourth)
			out, err := c.runner.Run(ctx, fmt.Sprintf("arping -I %s -c 1 -w 1 %s 2>/dev/null", iface, target))
			if err != nil {
				continue
			}

			if m := arpingReplyRe.FindStringSubmatch(out); m != nil && strings.Contains(out, "Received 1 response") {
				results = append(results, probeResult{ip: target, mac: strings.ToLower(m[1])})
			}
		}
	}

	return results
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
