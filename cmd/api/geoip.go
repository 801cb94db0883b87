package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/decoyworks/honeypot/internal/geoip"
)

var geoipValidateCmd = &cobra.Command{
	Use:   "geoip-validate <dir> [ip...]",
	Short: "Open the GeoLite2 databases in dir and resolve sample addresses",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proxies := geoip.NewProxyDetector(cfg.GeoIP.ProxyListPath, "")
		if err := proxies.Load(); err != nil {
			return err
		}

		geo, err := geoip.Open(args[0], proxies, cfg.GeoIP.CacheTTL)
		if err != nil {
			return err
		}
		defer geo.Close()

		ips := args[1:]
		if len(ips) == 0 {
			ips = []string{"8.8.8.8", "1.1.1.1"}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "proxy list entries: %d\n", proxies.Size())
		for _, ip := range ips {
			info := geo.Lookup(cmd.Context(), ip)
			fmt.Fprintf(out, "%-16s asn=%s org=%q country=%s tor_or_proxy=%t\n", ip, info.ASN, info.Org, info.Country, info.IsTorOrProxy)
		}
		return nil
	},
}
