package bom

import (
	"fmt"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/reconware/sweeper/internal/model"
)

// FromReport builds a BOM describing every host and port a scan found.
func FromReport(job model.Job, report model.Report) *Builder {
	b := NewBuilder().AppendProperties(
		cdx.Property{Name: "sweeper:job", Value: job.ID.String()},
		cdx.Property{Name: "sweeper:target", Value: report.Target},
		cdx.Property{Name: "sweeper:tool", Value: report.Tool},
		cdx.Property{Name: "sweeper:profile", Value: job.Profile},
	)
	for _, host := range report.Hosts {
		appendHost(b, host)
	}
	return b
}

func appendHost(b *Builder, host model.Host) {
	hostCompo := cdx.Component{
		BOMRef: "scan:host/" + host.Addr,
		Type:   cdx.ComponentTypeApplication,
		Name:   "host:" + host.Addr,
		Properties: &[]cdx.Property{
			{Name: "scan:status", Value: host.State},
		},
	}

	portRefs := make([]string, 0, len(host.Ports))
	portCompos := make([]cdx.Component, 0, len(host.Ports))
	for _, port := range host.Ports {
		compo := portComponent(host.Addr, port)
		portCompos = append(portCompos, compo)
		portRefs = append(portRefs, compo.BOMRef)
	}

	b.AppendComponents(hostCompo).AppendComponents(portCompos...)
	if len(portRefs) > 0 {
		b.AppendDependencies(cdx.Dependency{
			Ref:          hostCompo.BOMRef,
			Dependencies: &portRefs,
		})
		for _, ref := range portRefs {
			b.AppendDependencies(cdx.Dependency{Ref: ref})
		}
	}
}

func portComponent(addr string, port model.Port) cdx.Component {
	proto := strings.ToLower(port.Protocol)
	props := []cdx.Property{
		{Name: "scan:port", Value: fmt.Sprintf("%d", port.Number)},
		{Name: "scan:protocol", Value: proto},
		{Name: "scan:state", Value: port.State},
	}
	if port.Service != "" {
		props = append(props, cdx.Property{Name: "scan:service_name", Value: port.Service})
	}
	if port.Product != "" {
		props = append(props, cdx.Property{Name: "scan:service_product", Value: port.Product})
	}
	if port.Version != "" {
		props = append(props, cdx.Property{Name: "scan:service_version", Value: port.Version})
	}

	compo := cdx.Component{
		BOMRef:     fmt.Sprintf("scan:%s/%s/%s:%d", proto, port.State, addr, port.Number),
		Type:       cdx.ComponentTypeData,
		Name:       fmt.Sprintf("%s/%d", proto, port.Number),
		Properties: &props,
	}
	if port.Product != "" {
		compo.Description = strings.TrimSpace(port.Product + " " + port.Version)
	}
	return compo
}
