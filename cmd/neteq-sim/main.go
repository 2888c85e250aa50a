// Package main is the neteq-sim command.
//
// Usage:
//
//	neteq-sim run [-f config.yaml] [--duration 10s] [--jitter 30] [--loss 0.02]
//	neteq-sim config
//
// run plays a synthetic tone through a playout engine over a simulated
// network and prints the resulting statistics. With --metrics-addr the
// engine's Prometheus metrics are served while the simulation runs and
// until the process is interrupted.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
