// Package main provides the CacheSim CLI.
// CacheSim drives a trace or random workload through the cycle-accurate
// non-blocking cache controller and reports timing statistics.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

var (
	tracePath    = flag.String("trace", "", "Path to a memory access trace file")
	randomCount  = flag.Int("random", 0, "Number of random accesses to generate")
	randomSeed   = flag.Int64("seed", 1, "Seed for the random workload generator")
	configPath   = flag.String("config", "", "Path to cache configuration JSON file")
	numSets      = flag.Int("sets", 0, "Override the number of sets")
	numMSHR      = flag.Int("mshr", 0, "Override the number of MSHR slots")
	storeLatency = flag.Int("latency", 0, "Override the backing store latency in ticks")
	verbose      = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	config, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	requests, workload, err := buildWorkload()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	memory := mem.NewMemory()
	store := mem.NewFixedLatencyStore(memory, config.StoreLatency)
	controller := cache.NewController(config, store)

	completed := run(controller, requests)

	printReport(controller, config, workload, len(requests), completed)
}

// buildConfig loads the configuration file (or the defaults) and
// applies command-line overrides.
func buildConfig() (cache.Config, error) {
	config := cache.DefaultConfig()
	if *configPath != "" {
		loaded, err := cache.LoadConfig(*configPath)
		if err != nil {
			return cache.Config{}, err
		}
		config = loaded
	}

	if *numSets > 0 {
		config.NumSets = *numSets
	}
	if *numMSHR > 0 {
		config.NumMSHR = *numMSHR
	}
	if *storeLatency > 0 {
		config.StoreLatency = *storeLatency
	}

	if err := config.Validate(); err != nil {
		return cache.Config{}, err
	}
	return config, nil
}

func buildWorkload() ([]cache.Request, string, error) {
	switch {
	case *tracePath != "":
		requests, err := trace.Load(*tracePath)
		if err != nil {
			return nil, "", err
		}
		return requests, *tracePath, nil

	case *randomCount > 0:
		generator := trace.NewGenerator(*randomSeed)
		workload := fmt.Sprintf("%d random accesses (seed %d)",
			*randomCount, *randomSeed)
		return generator.Generate(*randomCount), workload, nil
	}

	fmt.Fprintf(os.Stderr, "Usage: cachesim -trace <file> | -random <n>\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	os.Exit(1)
	return nil, "", nil
}

// run drives the controller one tick at a time, re-presenting each
// stalled request until it is accepted, until every request has
// produced its response.
func run(controller *cache.Controller, requests []cache.Request) int {
	// Worst case per request: write-back plus fetch plus stall slack.
	limit := uint64(len(requests)+1) *
		uint64(2*controller.Config().StoreLatency+8)

	var pending *cache.Request
	next := 0
	completed := 0

	for completed < len(requests) && controller.Stats().Ticks < limit {
		if pending == nil && next < len(requests) {
			req := requests[next]
			pending = &req
			next++
		}

		result := controller.Tick(pending)
		if result.Accepted {
			pending = nil
		}

		for _, rsp := range result.Responses {
			completed++
			if *verbose {
				printResponse(controller.Stats().Ticks, rsp)
			}
		}
	}

	return completed
}

func printResponse(tick uint64, rsp cache.Response) {
	kind := "hit "
	if !rsp.Hit {
		kind = "miss"
	}
	op := "R"
	if rsp.IsWrite {
		op = "W"
	}
	fmt.Printf("[%8d] %s 0x%08X %s data=0x%X\n",
		tick, op, rsp.Address, kind, rsp.Data)
}

func printReport(
	controller *cache.Controller,
	config cache.Config,
	workload string,
	total, completed int,
) {
	stats := controller.Stats()

	totalTicks := stats.Ticks
	if totalTicks == 0 {
		totalTicks = 1 // Avoid division by zero
	}

	fmt.Printf("\n")
	fmt.Printf("Workload: %s\n", workload)
	fmt.Printf("Cache: %d sets x %d ways x %dB lines, %d MSHR slots, "+
		"store latency %d\n",
		config.NumSets, cache.NumWays, cache.BlockSize,
		config.NumMSHR, config.StoreLatency)
	fmt.Printf("Accesses completed: %d / %d\n", completed, total)
	fmt.Printf("Total Ticks: %d\n", stats.Ticks)
	fmt.Printf("\n")
	fmt.Printf("Hits:       %6d\n", stats.Hits)
	fmt.Printf("Misses:     %6d\n", stats.Misses)
	fmt.Printf("Hit rate:   %5.1f%%\n", 100.0*stats.HitRate())
	fmt.Printf("Evictions:  %6d\n", stats.Evictions)
	fmt.Printf("Writebacks: %6d\n", stats.Writebacks)
	fmt.Printf("Fetches:    %6d\n", stats.Fetches)
	fmt.Printf("\n")
	fmt.Printf("Stall Breakdown:\n")
	fmt.Printf("  Conflict stalls: %6d ticks (%5.1f%%)\n",
		stats.ConflictStalls,
		100.0*float64(stats.ConflictStalls)/float64(totalTicks))
	fmt.Printf("  MSHR-full stalls:%6d ticks (%5.1f%%)\n",
		stats.FullStalls,
		100.0*float64(stats.FullStalls)/float64(totalTicks))
	fmt.Printf("  Total stalls:    %6d ticks (%5.1f%%)\n",
		stats.Stalls,
		100.0*float64(stats.Stalls)/float64(totalTicks))

	if completed < total {
		fmt.Printf("\nWarning: tick limit reached before the workload "+
			"completed (%d outstanding)\n", total-completed)
	}
}
