package topology

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// observation is one directional sighting: local port saw remote port.
type observation struct {
	localHost   string
	localIface  string
	remoteHost  string
	remoteIface string
}

// Infer builds a topology from collected host data.
//
// The run proceeds in three phases:
//  1. Build a global MAC-to-port index and the host registry.
//  2. Resolve each host's neighbor observations through the index into
//     canonical, deduplicated links.
//  3. Mark a link bidirectional when both directions were observed.
//
// The index and observation set are locals of this call; Infer keeps no
// state between runs, so independent runs need no synchronization. Hosts
// and interfaces are processed in sorted order, which makes the duplicate
// MAC overwrite policy and the output link order deterministic for
// identical input.
func Infer(hostData map[string]*HostData) *Topology {
	topo := &Topology{Hosts: make(map[string]*HostInfo, len(hostData))}

	hostIDs := sortedKeys(hostData)

	// Phase 1: MAC index and host registry.
	macToPort := make(map[string]Port)
	for _, hostID := range hostIDs {
		data := hostData[hostID]
		hostname := data.Hostname
		if hostname == "" {
			hostname = hostID
		}
		topo.Hosts[hostID] = &HostInfo{
			HostID:     hostID,
			Hostname:   hostname,
			Interfaces: data.Interfaces,
			LinkStates: data.LinkStates,
			Neighbors:  data.Neighbors,
		}

		for _, ifaceName := range sortedKeys(data.Interfaces) {
			mac := NormalizeMAC(data.Interfaces[ifaceName].MAC)
			if mac == "" {
				continue
			}
			if existing, ok := macToPort[mac]; ok {
				log.WithFields(log.Fields{
					"mac":      mac,
					"existing": existing.Host + ":" + existing.Interface,
					"new":      hostID + ":" + ifaceName,
				}).Warn("duplicate MAC address, later host wins")
			}
			macToPort[mac] = Port{Host: hostID, Interface: ifaceName, MAC: mac}
		}
	}

	log.WithField("entries", len(macToPort)).Debug("built MAC index")

	// Phase 2: resolve neighbor observations into links.
	observed := make(map[observation]struct{})
	linksByPair := make(map[[2]portKey]*Link)
	var pairOrder [][2]portKey

	for _, hostID := range hostIDs {
		data := hostData[hostID]
		for _, iface := range sortedKeys(data.Neighbors) {
			ifaceInfo, ok := data.Interfaces[iface]
			if !ok {
				continue
			}
			localPort := Port{Host: hostID, Interface: iface, MAC: NormalizeMAC(ifaceInfo.MAC)}

			for _, neighbor := range data.Neighbors[iface] {
				remoteMAC := NormalizeMAC(neighbor.RemoteMAC)
				if remoteMAC == "" {
					continue
				}

				remotePort, ok := macToPort[remoteMAC]
				if !ok {
					// External or unmanaged neighbor; expected, not an issue.
					log.WithFields(log.Fields{
						"mac":  remoteMAC,
						"seen": hostID + ":" + iface,
					}).Debug("unknown remote MAC")
					continue
				}

				// Loopback artifacts and the like never become links.
				if remotePort.Host == hostID {
					continue
				}

				a, b := canonicalPair(localPort, remotePort)
				pair := [2]portKey{a.key(), b.key()}

				method := neighbor.DiscoveryMethod
				if method == "" {
					method = "unknown"
				}

				if link, ok := linksByPair[pair]; ok {
					link.AddMethod(method)
				} else {
					linksByPair[pair] = &Link{
						PortA:            a,
						PortB:            b,
						DiscoveryMethods: []string{method},
					}
					pairOrder = append(pairOrder, pair)
				}

				observed[observation{
					localHost:   hostID,
					localIface:  iface,
					remoteHost:  remotePort.Host,
					remoteIface: remotePort.Interface,
				}] = struct{}{}
			}
		}
	}

	// Phase 3: bidirectionality. A link is never split or removed here;
	// one-sided evidence just leaves the flag false.
	for _, pair := range pairOrder {
		link := linksByPair[pair]
		_, forward := observed[observation{
			localHost:   link.PortA.Host,
			localIface:  link.PortA.Interface,
			remoteHost:  link.PortB.Host,
			remoteIface: link.PortB.Interface,
		}]
		_, reverse := observed[observation{
			localHost:   link.PortB.Host,
			localIface:  link.PortB.Interface,
			remoteHost:  link.PortA.Host,
			remoteIface: link.PortA.Interface,
		}]
		link.Bidirectional = forward && reverse
		topo.Links = append(topo.Links, link)
	}

	summary := topo.Summary()
	log.WithFields(log.Fields{
		"hosts":         summary.HostCount,
		"links":         summary.LinkCount,
		"bidirectional": summary.BidirectionalLinks,
	}).Info("topology inferred")

	return topo
}

// NormalizeMAC lowercases a hardware address for index lookups. Matching
// is purely textual; no format validation happens here.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}
