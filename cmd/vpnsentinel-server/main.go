// The vpnsentinel-server binary ingests client keepalives, classifies them,
// and serves the API, health, and dashboard listeners.
package main

import "github.com/agigante80/VPNSentinel-sub000/internal/cmd"

func main() {
	cmd.Main()
}
