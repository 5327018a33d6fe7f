package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"toposcope/internal/topology"
	"toposcope/internal/transport"
)

var operStates = map[string]bool{
	"up": true, "down": true, "unknown": true, "dormant": true,
	"notpresent": true, "lowerlayerdown": true, "testing": true,
}

// LinkStateCollector gathers link-layer state from sysfs and ethtool.
type LinkStateCollector struct {
	runner transport.Runner
}

// NewLinkStateCollector creates a link state collector over a runner.
func NewLinkStateCollector(runner transport.Runner) *LinkStateCollector {
	return &LinkStateCollector{runner: runner}
}

// Collect gathers link state for the given interfaces. Individual read
// failures leave the corresponding field at its absent value.
func (c *LinkStateCollector) Collect(ctx context.Context, interfaces []string) map[string]*topology.LinkState {
	states := make(map[string]*topology.LinkState, len(interfaces))
	for _, iface := range interfaces {
		states[iface] = c.collectOne(ctx, iface)
	}
	return states
}

func (c *LinkStateCollector) collectOne(ctx context.Context, iface string) *topology.LinkState {
	state := &topology.LinkState{Interface: iface, OperState: "unknown"}

	if out, err := c.runner.Run(ctx, fmt.Sprintf("cat /sys/class/net/%s/operstate 2>/dev/null", iface)); err == nil {
		if v := strings.TrimSpace(out); operStates[v] {
			state.OperState = v
		}
	}

	if out, err := c.runner.Run(ctx, fmt.Sprintf("cat /sys/class/net/%s/carrier 2>/dev/null", iface)); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(out)); err == nil {
			state.Carrier = v == 1
		}
	}

	if out, err := c.runner.Run(ctx, fmt.Sprintf("ethtool %s 2>/dev/null", iface)); err == nil {
		if m := speedRe.FindStringSubmatch(out); m != nil {
			state.Speed = m[1]
		}
		if m := duplexRe.FindStringSubmatch(out); m != nil {
			state.Duplex = strings.ToLower(m[1])
		}
		if m := autonegRe.FindStringSubmatch(out); m != nil {
			state.Autoneg = strings.ToLower(m[1])
		}
		if m := linkRe.FindStringSubmatch(out); m != nil {
			state.LinkDetected = strings.EqualFold(m[1], "yes")
		}
	}

	c.collectStats(ctx, iface, &state.Stats)

	return state
}

// collectStats reads the statistics counters one file at a time. The
// audited counters stay nil on read failure so validation can tell
// "never read" from zero.
func (c *LinkStateCollector) collectStats(ctx context.Context, iface string, stats *topology.LinkStats) {
	read := func(name string) (int64, bool) {
		out, err := c.runner.Run(ctx, fmt.Sprintf("cat /sys/class/net/%s/statistics/%s 2>/dev/null", iface, name))
		if err != nil {
			return 0, false
		}
		v, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	if v, ok := read("rx_bytes"); ok {
		stats.RxBytes = v
	}
	if v, ok := read("rx_packets"); ok {
		stats.RxPackets = v
	}
	if v, ok := read("tx_bytes"); ok {
		stats.TxBytes = v
	}
	if v, ok := read("tx_packets"); ok {
		stats.TxPackets = v
	}
	if v, ok := read("rx_errors"); ok {
		stats.RxErrors = &v
	}
	if v, ok := read("rx_dropped"); ok {
		stats.RxDropped = &v
	}
	if v, ok := read("tx_errors"); ok {
		stats.TxErrors = &v
	}
	if v, ok := read("tx_dropped"); ok {
		stats.TxDropped = &v
	}
}
