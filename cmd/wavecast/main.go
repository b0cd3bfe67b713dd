// Command wavecast runs the host-side remote-access portal: pairing,
// device trust, session tracking, and the outbound relay connection that
// lets the mobile tunnel client reach it without an inbound port.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
