package collector

import (
	"context"
	"strings"
	"testing"
)

// fakeRunner returns canned output keyed by command substring, in
// declaration order. Unmatched commands return empty output.
type fakeRunner struct {
	responses []fakeResponse
	calls     []string
}

type fakeResponse struct {
	match  string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cmd string) (string, error) {
	f.calls = append(f.calls, cmd)
	for _, r := range f.responses {
		if strings.Contains(cmd, r.match) {
			return r.output, r.err
		}
	}
	return "", nil
}

func TestInterfaceCollector(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "awk -F", output: "lo\neth0\ndocker0\n"},
		{match: "ip -o link show lo", output: "1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 state UNKNOWN link/loopback 00:00:00:00:00:00"},
		{match: "ip -o link show eth0", output: "2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc fq_codel state UP mode DEFAULT group default qlen 1000\\    link/ether AA:BB:CC:DD:EE:01 brd ff:ff:ff:ff:ff:ff"},
		{match: "ip -4 -o addr show eth0", output: "10.0.0.5/24\n"},
		{match: "ip -6 -o addr show eth0", output: "fe80::1/64\n2001:db8::5/64\n"},
		{match: "ethtool -i eth0", output: "driver: e1000e\n"},
		{match: "ethtool eth0", output: "Settings for eth0:\n\tSpeed: 1000Mb/s\n\tDuplex: Full\n\tLink detected: yes\n"},
	}}

	interfaces, err := NewInterfaceCollector(runner).Collect(context.Background(), []string{"^lo$", "^docker"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(interfaces) != 1 {
		t.Fatalf("expected 1 interface after exclusion, got %d: %v", len(interfaces), interfaces)
	}

	eth0 := interfaces["eth0"]
	if eth0 == nil {
		t.Fatal("eth0 missing")
	}
	if eth0.MAC != "aa:bb:cc:dd:ee:01" {
		t.Errorf("expected lowercased MAC, got %q", eth0.MAC)
	}
	if eth0.State != "up" {
		t.Errorf("expected state up, got %q", eth0.State)
	}
	if eth0.MTU != 1500 {
		t.Errorf("expected MTU 1500, got %d", eth0.MTU)
	}
	if eth0.Speed != "1000Mb/s" || eth0.Duplex != "full" || !eth0.LinkDetected {
		t.Errorf("ethtool fields wrong: %+v", eth0)
	}
	if eth0.Driver != "e1000e" {
		t.Errorf("expected driver e1000e, got %q", eth0.Driver)
	}
	if len(eth0.IPv4Addresses) != 1 || eth0.IPv4Addresses[0] != "10.0.0.5/24" {
		t.Errorf("unexpected IPv4 addresses: %v", eth0.IPv4Addresses)
	}
	// Link-local IPv6 is dropped.
	if len(eth0.IPv6Addresses) != 1 || eth0.IPv6Addresses[0] != "2001:db8::5/64" {
		t.Errorf("unexpected IPv6 addresses: %v", eth0.IPv6Addresses)
	}
}

func TestInterfaceCollectorBadPattern(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "awk -F", output: "eth0\n"},
	}}
	if _, err := NewInterfaceCollector(runner).Collect(context.Background(), []string{"["}); err == nil {
		t.Error("expected error for invalid exclude pattern")
	}
}

func TestInterfaceCollectorDownState(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "awk -F", output: "eth1\n"},
		{match: "ip -o link show eth1", output: "3: eth1: <BROADCAST,MULTICAST> mtu 1500 state DOWN link/ether aa:bb:cc:dd:ee:02 brd ff:ff:ff:ff:ff:ff"},
	}}

	interfaces, err := NewInterfaceCollector(runner).Collect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if interfaces["eth1"].State != "down" {
		t.Errorf("expected down, got %q", interfaces["eth1"].State)
	}
}

func TestLinkStateCollector(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "operstate", output: "up\n"},
		{match: "carrier", output: "1\n"},
		{match: "ethtool eth0", output: "Settings for eth0:\n\tSpeed: 10Gb/s\n\tDuplex: Full\n\tAuto-negotiation: on\n\tLink detected: yes\n"},
		{match: "statistics/rx_bytes", output: "123456\n"},
		{match: "statistics/rx_packets", output: "1000\n"},
		{match: "statistics/rx_errors", output: "7\n"},
		{match: "statistics/rx_dropped", output: "0\n"},
		{match: "statistics/tx_bytes", output: "654321\n"},
		{match: "statistics/tx_packets", output: "900\n"},
		{match: "statistics/tx_errors", output: "not-a-number\n"},
		{match: "statistics/tx_dropped", output: "2\n"},
	}}

	states := NewLinkStateCollector(runner).Collect(context.Background(), []string{"eth0"})
	state := states["eth0"]
	if state == nil {
		t.Fatal("eth0 state missing")
	}

	if state.OperState != "up" || !state.Carrier || !state.LinkDetected {
		t.Errorf("link flags wrong: %+v", state)
	}
	if state.Speed != "10Gb/s" || state.Duplex != "full" || state.Autoneg != "on" {
		t.Errorf("ethtool fields wrong: %+v", state)
	}
	if state.Stats.RxBytes != 123456 || state.Stats.TxPackets != 900 {
		t.Errorf("plain counters wrong: %+v", state.Stats)
	}
	if state.Stats.RxErrors == nil || *state.Stats.RxErrors != 7 {
		t.Errorf("expected rx_errors 7, got %v", state.Stats.RxErrors)
	}
	if state.Stats.RxDropped == nil || *state.Stats.RxDropped != 0 {
		t.Errorf("expected rx_dropped 0 (present), got %v", state.Stats.RxDropped)
	}
	// Unparseable counter stays absent, not zero.
	if state.Stats.TxErrors != nil {
		t.Errorf("expected tx_errors absent, got %v", *state.Stats.TxErrors)
	}
}

func TestNeighborCollectorARP(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "ip neigh show", output: strings.Join([]string{
			"10.0.0.7 dev eth0 lladdr AA:BB:CC:DD:EE:07 REACHABLE",
			"10.0.0.8 dev eth1 lladdr aa:bb:cc:dd:ee:08 STALE",
			"10.0.0.9 dev eth0  FAILED", // no lladdr
			"fe80::1 dev eth0 lladdr aa:bb:cc:dd:ee:09 router REACHABLE",
		}, "\n")},
	}}

	neighbors := NewNeighborCollector(runner, 1).DiscoverAll(
		context.Background(), []string{"eth0"}, DiscoverOptions{ARP: true})

	eth0 := neighbors["eth0"]
	if len(eth0) != 2 {
		t.Fatalf("expected 2 ARP neighbors on eth0, got %d: %+v", len(eth0), eth0)
	}
	if eth0[0].RemoteMAC != "aa:bb:cc:dd:ee:07" || eth0[0].RemoteIP != "10.0.0.7" {
		t.Errorf("unexpected first neighbor: %+v", eth0[0])
	}
	if eth0[0].DiscoveryMethod != MethodARP {
		t.Errorf("expected arp method, got %s", eth0[0].DiscoveryMethod)
	}
}

func TestNeighborCollectorLLDP(t *testing.T) {
	lldpOut := `-------------------------------------------------------------------------------
LLDP neighbors:
-------------------------------------------------------------------------------
Interface:    eth0, via: LLDP, RID: 1, Time: 0 day, 00:10:10
  Chassis:
    ChassisID:    mac aa:bb:cc:dd:ee:99
    SysName:      switch-lab
  Port:
    PortID:       ifname ge-0/0/1
    PortDescr:    uplink to rack 3
  MgmtIP:       10.0.0.254
-------------------------------------------------------------------------------
`
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "lldpcli show neighbors", output: lldpOut},
	}}

	neighbors := NewNeighborCollector(runner, 1).DiscoverAll(
		context.Background(), []string{"eth0"}, DiscoverOptions{LLDP: true})

	eth0 := neighbors["eth0"]
	if len(eth0) != 1 {
		t.Fatalf("expected 1 LLDP neighbor, got %d", len(eth0))
	}
	n := eth0[0]
	if n.RemoteMAC != "aa:bb:cc:dd:ee:99" {
		t.Errorf("expected chassis MAC, got %q", n.RemoteMAC)
	}
	if n.RemoteHost != "switch-lab" || n.RemoteInterface != "ge-0/0/1" {
		t.Errorf("unexpected remote identity: %+v", n)
	}
	if n.RemoteIP != "10.0.0.254" {
		t.Errorf("expected management IP, got %q", n.RemoteIP)
	}
}

func TestNeighborCollectorMergePrecedence(t *testing.T) {
	lldpOut := `Interface:    eth0, via: LLDP
    ChassisID:    mac aa:bb:cc:dd:ee:99
    SysName:      switch-lab
    PortID:       ifname ge-0/0/1
`
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "lldpcli show neighbors", output: lldpOut},
		{match: "ip neigh show", output: "10.0.0.254 dev eth0 lladdr aa:bb:cc:dd:ee:99 REACHABLE\n" +
			"10.0.0.7 dev eth0 lladdr aa:bb:cc:dd:ee:07 REACHABLE\n"},
	}}

	neighbors := NewNeighborCollector(runner, 1).DiscoverAll(
		context.Background(), []string{"eth0"}, DiscoverOptions{LLDP: true, ARP: true})

	eth0 := neighbors["eth0"]
	if len(eth0) != 2 {
		t.Fatalf("expected LLDP entry plus one new ARP entry, got %d: %+v", len(eth0), eth0)
	}
	// The LLDP sighting of the same MAC wins; ARP only contributes the
	// MAC it alone saw.
	if eth0[0].DiscoveryMethod != MethodLLDP || eth0[0].RemoteHost != "switch-lab" {
		t.Errorf("expected LLDP entry first: %+v", eth0[0])
	}
	if eth0[1].DiscoveryMethod != MethodARP || eth0[1].RemoteMAC != "aa:bb:cc:dd:ee:07" {
		t.Errorf("expected ARP-only entry second: %+v", eth0[1])
	}
}

func TestNeighborCollectorProbeCleanup(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "arping", output: "ARPING 169.254.2.1 from 169.254.1.1 eth0\nUnicast reply from 169.254.2.1 [AA:BB:CC:DD:EE:21]  0.6ms\nReceived 1 response(s)\n"},
	}}

	collector := NewNeighborCollector(runner, 0)
	results := collector.probeInterface(context.Background(), "eth0", 0)

	if len(results) == 0 {
		t.Fatal("expected probe results")
	}
	for _, r := range results {
		if r.mac != "aa:bb:cc:dd:ee:21" {
			t.Errorf("unexpected probe MAC: %q", r.mac)
		}
	}

	var added, deleted bool
	for _, call := range runner.calls {
		if strings.Contains(call, "ip addr add 169.254.1.1/16") {
			added = true
		}
		if strings.Contains(call, "ip addr del 169.254.1.1/16") {
			deleted = true
		}
	}
	if !added || !deleted {
		t.Errorf("expected probe address add and del, calls: added=%v deleted=%v", added, deleted)
	}
}

func TestProbeAddressUnique(t *testing.T) {
	a := NewNeighborCollector(nil, 1).probeAddress(0)
	b := NewNeighborCollector(nil, 2).probeAddress(0)
	c := NewNeighborCollector(nil, 1).probeAddress(1)

	if a == b || a == c {
		t.Errorf("expected distinct probe addresses, got %s, %s, %s", a, b, c)
	}
	if !strings.HasPrefix(a, "169.254.") {
		t.Errorf("expected link-local prefix, got %s", a)
	}
}

func TestCollectHost(t *testing.T) {
	runner := &fakeRunner{responses: []fakeResponse{
		{match: "awk -F", output: "eth0\n"},
		{match: "ip -o link show eth0", output: "2: eth0: <BROADCAST,UP> mtu 1500 state UP link/ether aa:bb:cc:dd:ee:01"},
		{match: "operstate", output: "up\n"},
		{match: "carrier", output: "1\n"},
		{match: "ip neigh show", output: "10.0.0.7 dev eth0 lladdr aa:bb:cc:dd:ee:07 REACHABLE\n"},
	}}

	data, err := New(runner).CollectHost(context.Background(), "host1", "10.0.0.1", Options{})
	if err != nil {
		t.Fatalf("CollectHost failed: %v", err)
	}

	if data.Hostname != "10.0.0.1" {
		t.Errorf("unexpected hostname: %q", data.Hostname)
	}
	if len(data.Interfaces) != 1 || data.Interfaces["eth0"] == nil {
		t.Fatalf("unexpected interfaces: %+v", data.Interfaces)
	}
	if data.LinkStates["eth0"] == nil || !data.LinkStates["eth0"].Carrier {
		t.Errorf("unexpected link state: %+v", data.LinkStates["eth0"])
	}
	if len(data.Neighbors["eth0"]) != 1 {
		t.Errorf("unexpected neighbors: %+v", data.Neighbors)
	}
}

func TestHostIndex(t *testing.T) {
	cases := map[string]int{
		"host1":  1,
		"host42": 42,
		"web-1":  0,
		"host":   0,
	}
	for id, want := range cases {
		if got := hostIndex(id); got != want {
			t.Errorf("hostIndex(%q) = %d, want %d", id, got, want)
		}
	}
}
