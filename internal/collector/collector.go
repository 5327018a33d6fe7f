// Package collector gathers per-host network telemetry over a transport
// runner and normalizes it into the record types the topology engine
// consumes. All textual scraping of ip/ethtool/lldpcli output lives here;
// the engine never sees raw command output.
package collector

import (
	"context"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"toposcope/internal/topology"
	"toposcope/internal/transport"
)

// Collector runs the full per-host collection sequence.
type Collector struct {
	runner transport.Runner
}

// New creates a per-host collector over a runner.
func New(runner transport.Runner) *Collector {
	return &Collector{runner: runner}
}

// Options controls a collection pass.
type Options struct {
	ExcludePatterns []string
	// Probe enables active neighbor probing (temporary link-local
	// addresses plus arping). Off by default; it mutates interface state
	// on the target host.
	Probe bool
}

// CollectHost gathers interfaces, link states, and neighbors for one
// host. Only the interface listing is fatal; everything downstream
// degrades to partial records.
func (c *Collector) CollectHost(ctx context.Context, hostID, hostname string, opts Options) (*topology.HostData, error) {
	logger := log.WithField("host", hostID)

	logger.Debug("collecting interfaces")
	ifaceCollector := NewInterfaceCollector(c.runner)
	interfaces, err := ifaceCollector.Collect(ctx, opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	logger.WithField("count", len(interfaces)).Debug("interfaces collected")

	names := make([]string, 0, len(interfaces))
	for name := range interfaces {
		names = append(names, name)
	}

	logger.Debug("collecting link states")
	linkStates := NewLinkStateCollector(c.runner).Collect(ctx, names)

	logger.Debug("discovering neighbors")
	neighborCollector := NewNeighborCollector(c.runner, hostIndex(hostID))
	neighbors := neighborCollector.DiscoverAll(ctx, names, DiscoverOptions{
		LLDP:  true,
		ARP:   true,
		Probe: opts.Probe,
	})

	count := 0
	for _, list := range neighbors {
		count += len(list)
	}
	logger.WithField("entries", count).Debug("neighbors discovered")

	return &topology.HostData{
		Hostname:   hostname,
		Interfaces: interfaces,
		LinkStates: linkStates,
		Neighbors:  neighbors,
	}, nil
}

// hostIndex derives a numeric index from IDs like "host3" for probe
// address generation; anything else maps to 0.
func hostIndex(hostID string) int {
	if strings.HasPrefix(hostID, "host") {
		if n, err := strconv.Atoi(strings.TrimPrefix(hostID, "host")); err == nil {
			return n
		}
	}
	return 0
}
