package collector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"toposcope/internal/topology"
	"toposcope/internal/transport"
)

var (
	macRe     = regexp.MustCompile(`link/ether\s+([0-9a-fA-F:]+)`)
	mtuRe     = regexp.MustCompile(`mtu\s+(\d+)`)
	speedRe   = regexp.MustCompile(`Speed:\s*(\S+)`)
	duplexRe  = regexp.MustCompile(`Duplex:\s*(\S+)`)
	linkRe    = regexp.MustCompile(`Link detected:\s*(\S+)`)
	autonegRe = regexp.MustCompile(`Auto-negotiation:\s*(\S+)`)
	driverRe  = regexp.MustCompile(`driver:\s*(\S+)`)
)

// InterfaceCollector scrapes per-interface inventory from ip and ethtool.
type InterfaceCollector struct {
	runner transport.Runner
}

// NewInterfaceCollector creates an interface collector over a runner.
func NewInterfaceCollector(runner transport.Runner) *InterfaceCollector {
	return &InterfaceCollector{runner: runner}
}

// Collect gathers all interfaces on the host, minus those matching the
// exclude patterns. A failure on a single interface degrades to a bare
// record rather than failing the host.
func (c *InterfaceCollector) Collect(ctx context.Context, excludePatterns []string) (map[string]*topology.InterfaceInfo, error) {
	names, err := c.interfaceNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	names, err = filterNames(names, excludePatterns)
	if err != nil {
		return nil, err
	}

	interfaces := make(map[string]*topology.InterfaceInfo, len(names))
	for _, name := range names {
		info, err := c.collectOne(ctx, name)
		if err != nil {
			log.WithFields(log.Fields{"interface": name, "error": err}).Warn("interface collection failed")
			info = &topology.InterfaceInfo{Name: name, State: "unknown"}
		}
		interfaces[name] = info
	}

	return interfaces, nil
}

func (c *InterfaceCollector) interfaceNames(ctx context.Context) ([]string, error) {
	out, err := c.runner.Run(ctx, `ip -o link show | awk -F': ' '{print $2}' | cut -d'@' -f1`)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// filterNames drops names matching any exclude pattern. Patterns are
// anchored at the start, so "docker" excludes docker0 but not mydocker.
func filterNames(names, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return names, nil
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	var kept []string
	for _, name := range names {
		excluded := false
		for _, re := range compiled {
			if re.MatchString(name) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, name)
		}
	}
	return kept, nil
}

func (c *InterfaceCollector) collectOne(ctx context.Context, name string) (*topology.InterfaceInfo, error) {
	info := &topology.InterfaceInfo{Name: name, State: "unknown"}

	if err := c.collectBasic(ctx, info); err != nil {
		return nil, err
	}
	c.collectAddresses(ctx, info)
	c.collectEthtool(ctx, info)

	return info, nil
}

func (c *InterfaceCollector) collectBasic(ctx context.Context, info *topology.InterfaceInfo) error {
	out, err := c.runner.Run(ctx, fmt.Sprintf("ip -o link show %s", info.Name))
	if err != nil {
		return err
	}

	if m := macRe.FindStringSubmatch(out); m != nil {
		info.MAC = strings.ToLower(m[1])
	}

	switch {
	case strings.Contains(out, "state UP"):
		info.State = "up"
	case strings.Contains(out, "state DOWN"):
		info.State = "down"
	case strings.Contains(out, "<UP,") || strings.Contains(out, ",UP>") || strings.Contains(out, ",UP,"):
		// Some virtual interfaces report state UNKNOWN; fall back to flags.
		info.State = "up"
	default:
		info.State = "down"
	}

	if m := mtuRe.FindStringSubmatch(out); m != nil {
		if mtu, err := strconv.Atoi(m[1]); err == nil {
			info.MTU = mtu
		}
	}

	return nil
}

func (c *InterfaceCollector) collectAddresses(ctx context.Context, info *topology.InterfaceInfo) {
	if out, err := c.runner.Run(ctx, fmt.Sprintf("ip -4 -o addr show %s | awk '{print $4}'", info.Name)); err == nil {
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			if addr := strings.TrimSpace(line); addr != "" {
				info.IPv4Addresses = append(info.IPv4Addresses, addr)
			}
		}
	}

	if out, err := c.runner.Run(ctx, fmt.Sprintf("ip -6 -o addr show %s | awk '{print $4}'", info.Name)); err == nil {
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			addr := strings.TrimSpace(line)
			if addr == "" || strings.HasPrefix(addr, "fe80::") {
				continue
			}
			info.IPv6Addresses = append(info.IPv6Addresses, addr)
		}
	}
}

func (c *InterfaceCollector) collectEthtool(ctx context.Context, info *topology.InterfaceInfo) {
	if out, err := c.runner.Run(ctx, fmt.Sprintf("ethtool %s 2>/dev/null", info.Name)); err == nil {
		if m := speedRe.FindStringSubmatch(out); m != nil {
			info.Speed = m[1]
		}
		if m := duplexRe.FindStringSubmatch(out); m != nil {
			info.Duplex = strings.ToLower(m[1])
		}
		if m := linkRe.FindStringSubmatch(out); m != nil {
			info.LinkDetected = strings.EqualFold(m[1], "yes")
		}
	}

	if out, err := c.runner.Run(ctx, fmt.Sprintf("ethtool -i %s 2>/dev/null | grep driver", info.Name)); err == nil {
		if m := driverRe.FindStringSubmatch(out); m != nil {
			info.Driver = m[1]
		}
	}
}
