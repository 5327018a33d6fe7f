// Package preflight checks SSH reachability of inventory hosts with an
// nmap TCP port probe before collection starts, so unreachable hosts are
// skipped instead of burning a full connect timeout each.
package preflight

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	nmap "github.com/Ullaakut/nmap/v3"
	log "github.com/sirupsen/logrus"

	"toposcope/internal/config"
)

// Available reports whether the nmap binary can be invoked. A failed
// check means preflight must be skipped, not that hosts are down.
func Available(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}

	_, _, err = scanner.Run()
	return err == nil
}

// FilterReachable probes the SSH port of every host in hostIDs and
// returns the IDs that answered plus the IDs that were skipped. When
// nmap is not available all hosts pass through unfiltered.
func FilterReachable(ctx context.Context, inv *config.Inventory, hostIDs []string) (reachable, skipped []string) {
	if !Available(ctx) {
		log.Warn("nmap not available, skipping reachability preflight")
		return hostIDs, nil
	}

	// Hosts sharing an SSH port are probed in one nmap run.
	byPort := make(map[int][]string)
	for _, id := range hostIDs {
		cfg, ok := inv.Hosts[id]
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		port := cfg.Port
		if port == 0 {
			port = 22
		}
		byPort[port] = append(byPort[port], id)
	}

	ports := make([]int, 0, len(byPort))
	for port := range byPort {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	for _, port := range ports {
		ids := byPort[port]
		open, err := probePort(ctx, inv, ids, port)
		if err != nil {
			log.WithFields(log.Fields{
				"port":  port,
				"error": err,
			}).Warn("preflight probe failed, keeping hosts")
			reachable = append(reachable, ids...)
			continue
		}
		for _, id := range ids {
			if open[inv.Hosts[id].Hostname] {
				reachable = append(reachable, id)
			} else {
				log.WithFields(log.Fields{
					"host": id,
					"addr": inv.Hosts[id].Hostname,
					"port": port,
				}).Warn("host failed reachability preflight, skipping")
				skipped = append(skipped, id)
			}
		}
	}

	sort.Strings(reachable)
	sort.Strings(skipped)
	return reachable, skipped
}

// probePort runs one nmap scan over all addresses for a single SSH port
// and returns which addresses have it open.
func probePort(ctx context.Context, inv *config.Inventory, hostIDs []string, port int) (map[string]bool, error) {
	targets := make([]string, 0, len(hostIDs))
	for _, id := range hostIDs {
		targets = append(targets, inv.Hosts[id].Hostname)
	}

	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(targets...),
		nmap.WithPorts(strconv.Itoa(port)),
		nmap.WithSkipHostDiscovery(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.WithField("warnings", *warnings).Debug("nmap preflight warnings")
	}

	open := make(map[string]bool)
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		portOpen := false
		for _, p := range host.Ports {
			if int(p.ID) == port && p.State.State == "open" {
				portOpen = true
				break
			}
		}
		if !portOpen {
			continue
		}

		for _, addr := range host.Addresses {
			open[addr.Addr] = true
		}
		for _, name := range host.Hostnames {
			open[name.Name] = true
		}
	}

	return open, nil
}
