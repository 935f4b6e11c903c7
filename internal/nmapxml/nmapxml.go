// Package nmapxml converts nmap -oX output into the engine's report
// shape. It is the reference parser; other tools plug in through the same
// interface.
package nmapxml

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/reconware/sweeper/internal/model"
)

// Parser parses nmap XML captured from a finished scan. The zero value is
// ready to use.
type Parser struct{}

// Parse decodes the XML on stdout. Truncated captures are rejected up
// front, a cut-off document would decode into a silently incomplete
// report.
func (Parser) Parse(_ context.Context, job model.Job, res model.ExecResult) (model.Report, error) {
	if res.StdoutTruncated {
		return model.Report{}, fmt.Errorf("nmap output truncated at capture limit: %w", model.ErrParse)
	}
	if len(bytes.TrimSpace(res.Stdout)) == 0 {
		return model.Report{}, fmt.Errorf("no XML on stdout (is -oX - missing from the profile?): %w", model.ErrParse)
	}

	var run nmap.Run
	if err := nmap.Parse(res.Stdout, &run); err != nil {
		return model.Report{}, fmt.Errorf("decoding nmap XML: %v: %w", err, model.ErrParse)
	}

	report := model.Report{
		Target: job.Target,
		Tool:   job.Tool,
		Hosts:  make([]model.Host, 0, len(run.Hosts)),
	}
	for _, host := range run.Hosts {
		report.Hosts = append(report.Hosts, convertHost(host))
	}
	return report, nil
}

func convertHost(host nmap.Host) model.Host {
	h := model.Host{
		Addr:  primaryAddr(host),
		State: strings.ToLower(host.Status.State),
		Ports: make([]model.Port, 0, len(host.Ports)),
	}
	for _, port := range host.Ports {
		h.Ports = append(h.Ports, model.Port{
			Number:   port.ID,
			Protocol: strings.ToLower(port.Protocol),
			State:    strings.ToLower(port.State.State),
			Service:  port.Service.Name,
			Product:  port.Service.Product,
			Version:  port.Service.Version,
		})
	}
	return h
}

func primaryAddr(host nmap.Host) string {
	for _, a := range host.Addresses {
		// prefer the IP over a MAC address row
		if a.AddrType == "ipv4" || a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	if len(host.Addresses) > 0 {
		return host.Addresses[0].Addr
	}
	return "unknown"
}
