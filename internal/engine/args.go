package engine

import (
	"strconv"
)

// Public resolvers used for --async-dns-server when DoH is enabled.
const (
	dnsServersIPv4  = "223.5.5.5,119.29.29.29"
	dnsServersMixed = "2400:3200::1,2402:4e00::,223.5.5.5,119.29.29.29"
)

// buildArgs returns the aria2c command line for an RPC-only engine.
func buildArgs(cfg Config, port int, secret string, parentPID int) []string {
	args := []string{
		"--enable-rpc",
		"--rpc-listen-port=" + strconv.Itoa(port),
		"--rpc-listen-all=false",
		"--rpc-secret=" + secret,
		"--async-dns=true",
		"--stop-with-process=" + strconv.Itoa(parentPID),
		"--log=" + cfg.logPath(),
		"--log-level=info",
		"--console-log-level=warn",
		"--file-allocation=none",
	}

	if cfg.DisableIPv6 {
		args = append(args, "--disable-ipv6=true")
	}

	if cfg.UseDoH {
		servers := dnsServersMixed
		if cfg.DisableIPv6 {
			servers = dnsServersIPv4
		}
		args = append(args, "--async-dns-server="+servers)
	}

	return args
}
