// Package main provides the entry point for CacheSim.
// CacheSim is a cycle-accurate non-blocking cache controller simulator
// built on Akita cache components.
//
// For the full CLI, use: go run ./cmd/cachesim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("CacheSim - Non-Blocking Cache Controller Simulator")
	fmt.Println("Built on Akita cache components")
	fmt.Println("")
	fmt.Println("Usage: cachesim [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -trace     Path to a memory access trace file")
	fmt.Println("  -random    Number of random accesses to generate")
	fmt.Println("  -config    Path to cache configuration JSON file")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/cachesim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/cachesim' instead.")
	}
}
