// The vpnsentinel-client binary samples the host's public network identity
// and reports it to the server.
package main

import "github.com/agigante80/VPNSentinel-sub000/internal/agentcmd"

func main() {
	agentcmd.Main()
}
