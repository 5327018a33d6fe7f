package topology

import "sort"

// InterfaceInfo is the normalized inventory record for a single network
// interface, produced by the collectors. The core never sees raw command
// output, only this shape.
type InterfaceInfo struct {
	Name          string   `json:"name"`
	MAC           string   `json:"mac"`
	State         string   `json:"state"` // "up", "down", "unknown"
	MTU           int      `json:"mtu"`
	Speed         string   `json:"speed,omitempty"`
	Duplex        string   `json:"duplex,omitempty"`
	Driver        string   `json:"driver,omitempty"`
	IPv4Addresses []string `json:"ipv4_addresses,omitempty"`
	IPv6Addresses []string `json:"ipv6_addresses,omitempty"`
	LinkDetected  bool     `json:"link_detected"`
}

// LinkStats holds interface counters. The four audited counters are
// pointers so that "never collected" is distinguishable from a genuine
// zero; an absent counter contributes no validation issue.
type LinkStats struct {
	RxBytes   int64  `json:"rx_bytes"`
	RxPackets int64  `json:"rx_packets"`
	RxErrors  *int64 `json:"rx_errors,omitempty"`
	RxDropped *int64 `json:"rx_dropped,omitempty"`
	TxBytes   int64  `json:"tx_bytes"`
	TxPackets int64  `json:"tx_packets"`
	TxErrors  *int64 `json:"tx_errors,omitempty"`
	TxDropped *int64 `json:"tx_dropped,omitempty"`
}

// LinkState is the link-layer view of an interface: carrier and operstate
// from sysfs, speed/duplex/link from ethtool, plus counters.
type LinkState struct {
	Interface    string    `json:"interface"`
	Carrier      bool      `json:"carrier"`
	OperState    string    `json:"operstate"`
	LinkDetected bool      `json:"link_detected"`
	Speed        string    `json:"speed,omitempty"`
	Duplex       string    `json:"duplex,omitempty"`
	Autoneg      string    `json:"autoneg,omitempty"`
	Stats        LinkStats `json:"stats"`
}

// Neighbor is one directional observation: a local interface saw a remote
// party via some discovery method.
type Neighbor struct {
	LocalInterface  string `json:"local_interface"`
	DiscoveryMethod string `json:"discovery_method"` // "lldp", "arp", "probe"
	RemoteMAC       string `json:"remote_mac,omitempty"`
	RemoteHost      string `json:"remote_host,omitempty"`
	RemoteInterface string `json:"remote_interface,omitempty"`
	RemoteIP        string `json:"remote_ip,omitempty"`
}

// HostData is the complete collected snapshot for one host, keyed by
// interface name. It is immutable once handed to Infer.
type HostData struct {
	Hostname   string                    `json:"hostname"`
	Interfaces map[string]*InterfaceInfo `json:"interfaces"`
	LinkStates map[string]*LinkState     `json:"link_states"`
	Neighbors  map[string][]Neighbor     `json:"neighbors"`
}

// Port identifies a network interface on a host. Two ports are equal iff
// host and interface match; the MAC is descriptive only.
type Port struct {
	Host      string `json:"host"`
	Interface string `json:"interface"`
	MAC       string `json:"mac"`
}

type portKey struct {
	host  string
	iface string
}

func (p Port) key() portKey {
	return portKey{host: p.Host, iface: p.Interface}
}

// less orders ports by (host, interface) so link endpoints can be
// canonicalized regardless of which side produced the observation.
func (p Port) less(other Port) bool {
	if p.Host != other.Host {
		return p.Host < other.Host
	}
	return p.Interface < other.Interface
}

// canonicalPair returns the two ports sorted by (host, interface).
func canonicalPair(a, b Port) (Port, Port) {
	if b.less(a) {
		return b, a
	}
	return a, b
}

// Link is an inferred physical connection between two ports. PortA always
// sorts before PortB, so the same unordered pair maps to one Link per run.
type Link struct {
	PortA            Port     `json:"port_a"`
	PortB            Port     `json:"port_b"`
	Bidirectional    bool     `json:"bidirectional"`
	DiscoveryMethods []string `json:"discovery_methods"`
}

// InvolvesPort reports whether either endpoint is the given port.
func (l *Link) InvolvesPort(host, iface string) bool {
	return (l.PortA.Host == host && l.PortA.Interface == iface) ||
		(l.PortB.Host == host && l.PortB.Interface == iface)
}

// AddMethod appends a discovery method unless already present. Insertion
// order is preserved; it only affects display.
func (l *Link) AddMethod(method string) {
	for _, m := range l.DiscoveryMethods {
		if m == method {
			return
		}
	}
	l.DiscoveryMethods = append(l.DiscoveryMethods, method)
}

// HostInfo is the per-host entry in the topology's host registry.
type HostInfo struct {
	HostID     string                    `json:"host_id"`
	Hostname   string                    `json:"hostname"`
	Interfaces map[string]*InterfaceInfo `json:"-"`
	LinkStates map[string]*LinkState     `json:"-"`
	Neighbors  map[string][]Neighbor     `json:"-"`
}

// InterfaceNames returns the host's interface names in sorted order.
func (h *HostInfo) InterfaceNames() []string {
	names := make([]string, 0, len(h.Interfaces))
	for name := range h.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary holds counts derived from a topology by scanning; there are no
// cached counters to go stale.
type Summary struct {
	HostCount           int `json:"host_count"`
	LinkCount           int `json:"link_count"`
	BidirectionalLinks  int `json:"bidirectional_links"`
	UnidirectionalLinks int `json:"unidirectional_links"`
}

// Topology is the inferred graph: a host registry plus a link list. Every
// link endpoint references a host present in Hosts; unresolved remote
// addresses never materialize as dangling links.
type Topology struct {
	Hosts map[string]*HostInfo `json:"hosts"`
	Links []*Link              `json:"links"`
}

// LinksForHost returns all links with an endpoint on the given host.
func (t *Topology) LinksForHost(hostID string) []*Link {
	var links []*Link
	for _, link := range t.Links {
		if link.PortA.Host == hostID || link.PortB.Host == hostID {
			links = append(links, link)
		}
	}
	return links
}

// LinkForInterface returns the link involving the given port, or nil. A
// port appears in at most one canonical pair per run.
func (t *Topology) LinkForInterface(host, iface string) *Link {
	for _, link := range t.Links {
		if link.InvolvesPort(host, iface) {
			return link
		}
	}
	return nil
}

// Summary computes derived counts by scanning the link list.
func (t *Topology) Summary() Summary {
	s := Summary{
		HostCount: len(t.Hosts),
		LinkCount: len(t.Links),
	}
	for _, link := range t.Links {
		if link.Bidirectional {
			s.BidirectionalLinks++
		} else {
			s.UnidirectionalLinks++
		}
	}
	return s
}

// HostIDs returns the registry's host IDs in sorted order.
func (t *Topology) HostIDs() []string {
	ids := make([]string, 0, len(t.Hosts))
	for id := range t.Hosts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
