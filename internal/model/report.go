package model

// Report is the parsed outcome of a scan, produced by a result parser
// collaborator and consumed by persistence sinks and exporters.
type Report struct {
	Target string `json:"target"`
	Tool   string `json:"tool"`
	Hosts  []Host `json:"hosts"`
}

// Host is a single discovered host.
type Host struct {
	Addr  string `json:"addr"`
	State string `json:"state"`
	Ports []Port `json:"ports,omitempty"`
}

// Port is a single probed port on a host.
type Port struct {
	Number   uint16 `json:"number"`
	Protocol string `json:"protocol"`
	State    string `json:"state"`
	Service  string `json:"service,omitempty"`
	Product  string `json:"product,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Summarize computes the counters shown on a completed job.
func (r Report) Summarize() Summary {
	var s Summary
	for _, h := range r.Hosts {
		if h.State == "up" {
			s.HostsUp++
		}
		for _, p := range h.Ports {
			s.PortsTotal++
			if p.State == "open" {
				s.PortsOpen++
			}
		}
	}
	return s
}
