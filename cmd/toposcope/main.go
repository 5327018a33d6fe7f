package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"toposcope/internal/collector"
	"toposcope/internal/config"
	"toposcope/internal/output"
	"toposcope/internal/preflight"
	"toposcope/internal/store"
	"toposcope/internal/topology"
)

func main() {
	inventoryPath := flag.String("inventory", "hosts.yaml", "Path to the host inventory file")
	outputPath := flag.String("output", "", "Write the report to a file instead of stdout")
	format := flag.String("format", "text", "Output format: json, text, or ascii")
	hostsFlag := flag.String("hosts", "", "Comma-separated host IDs to scan (default: all)")
	probe := flag.Bool("probe", false, "Enable active link-local neighbor probing")
	runPreflight := flag.Bool("preflight", false, "Probe SSH reachability with nmap before collecting")
	dbPath := flag.String("db", "", "SQLite database path to store the latest topology")
	concurrency := flag.Int("concurrency", 5, "Maximum parallel SSH sessions")
	errorThreshold := flag.Int64("error-threshold", 100, "Interface error counter threshold")
	droppedThreshold := flag.Int64("dropped-threshold", 1000, "Interface dropped counter threshold")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	// Credentials referenced via password_env may live in a local .env.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env")
	}

	ctx := context.Background()

	inv, err := config.LoadInventory(*inventoryPath)
	if err != nil {
		log.Fatalf("Failed to load inventory: %v", err)
	}

	if *hostsFlag != "" {
		ids := strings.Split(*hostsFlag, ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		if err := inv.FilterHosts(ids); err != nil {
			log.Fatalf("Failed to filter hosts: %v", err)
		}
	}

	if *runPreflight {
		reachable, skipped := preflight.FilterReachable(ctx, inv, inv.HostIDs())
		if len(skipped) > 0 {
			log.WithField("hosts", skipped).Warn("skipping unreachable hosts")
		}
		if len(reachable) == 0 {
			log.Fatal("No hosts passed the reachability preflight")
		}
		if err := inv.FilterHosts(reachable); err != nil {
			log.Fatalf("Failed to apply preflight filter: %v", err)
		}
	}

	log.WithField("hosts", len(inv.Hosts)).Info("starting collection")
	hostData := collector.Gather(ctx, inv, collector.SSHDialer, collector.GatherOptions{
		MaxConcurrent: *concurrency,
		Probe:         *probe,
	})
	if len(hostData) == 0 {
		log.Fatal("No hosts could be collected")
	}

	topo := topology.Infer(hostData)

	opts := topology.DefaultValidateOptions()
	opts.ErrorThreshold = *errorThreshold
	opts.DroppedThreshold = *droppedThreshold
	issues := topology.Validate(topo, hostData, opts)

	if err := render(topo, issues, *format, *outputPath); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	if *dbPath != "" {
		s, err := store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		if err := s.SaveTopology(ctx, topo, issues); err != nil {
			s.Close()
			log.Fatalf("Failed to store topology: %v", err)
		}
		s.Close()
		log.WithField("path", *dbPath).Info("topology stored")
	}

	fmt.Fprintln(os.Stderr, output.FormatIssueSummary(issues))
}

func render(topo *topology.Topology, issues []topology.Issue, format, path string) error {
	switch format {
	case "json":
		if path != "" {
			return output.WriteJSON(topo, issues, path)
		}
		data, err := output.MarshalJSON(topo, issues)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	case "text", "ascii":
		report := output.RenderText(topo, issues)
		if format == "ascii" {
			report = output.RenderASCII(topo, issues)
		}
		if path != "" {
			return os.WriteFile(path, []byte(report), 0644)
		}
		fmt.Print(report)
		return nil
	default:
		return fmt.Errorf("unknown format %q (expected json, text, or ascii)", format)
	}
}
