package collector

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"toposcope/internal/config"
	"toposcope/internal/topology"
	"toposcope/internal/transport"
)

// GatherOptions controls a fleet-wide collection pass.
type GatherOptions struct {
	// MaxConcurrent bounds parallel SSH sessions across hosts.
	MaxConcurrent int
	// Probe enables active neighbor probing on every host.
	Probe bool
}

// DialFunc opens a runner for one host. Tests substitute fakes; the CLI
// passes transport.Dial wrapped to a closer pair.
type DialFunc func(ctx context.Context, hostID string, cfg *config.HostConfig) (transport.Runner, func() error, error)

// SSHDialer is the production DialFunc over the SSH transport.
func SSHDialer(ctx context.Context, hostID string, cfg *config.HostConfig) (transport.Runner, func() error, error) {
	client, err := transport.Dial(ctx, transport.SSHConfig{
		Host:           cfg.Hostname,
		Port:           cfg.Port,
		Username:       cfg.Username,
		AuthType:       transport.AuthType(cfg.AuthType),
		KeyFile:        cfg.KeyFile,
		Password:       cfg.Password,
		ConnectTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// Gather collects from every inventory host in parallel and returns the
// snapshot map keyed by host ID. A host that fails collection is logged
// and omitted; it never blocks or fails the others. The returned map is
// complete when Gather returns, so inference always starts from a closed
// world.
func Gather(ctx context.Context, inv *config.Inventory, dial DialFunc, opts GatherOptions) map[string]*topology.HostData {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		hostData = make(map[string]*topology.HostData)
	)
	semaphore := make(chan struct{}, opts.MaxConcurrent)

	for hostID, hostCfg := range inv.Hosts {
		wg.Add(1)
		go func(hostID string, hostCfg *config.HostConfig) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			logger := log.WithField("host", hostID)

			hostCtx := ctx
			if hostCfg.Timeout > 0 {
				var cancel context.CancelFunc
				// Collection runs many short commands; give the whole
				// host a generous multiple of the per-command timeout.
				hostCtx, cancel = context.WithTimeout(ctx, hostCfg.Timeout*20)
				defer cancel()
			}

			runner, closer, err := dial(hostCtx, hostID, hostCfg)
			if err != nil {
				logger.WithField("error", err).Error("connection failed")
				return
			}
			defer closer()

			data, err := New(runner).CollectHost(hostCtx, hostID, hostCfg.Hostname, Options{
				ExcludePatterns: inv.ExcludeInterfaces,
				Probe:           opts.Probe,
			})
			if err != nil {
				logger.WithField("error", err).Error("collection failed")
				return
			}

			mu.Lock()
			hostData[hostID] = data
			mu.Unlock()

			logger.WithField("interfaces", len(data.Interfaces)).Info("host collected")
		}(hostID, hostCfg)
	}

	wg.Wait()

	log.WithFields(log.Fields{
		"collected": len(hostData),
		"requested": len(inv.Hosts),
	}).Info("collection complete")

	return hostData
}
