package bom_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reconware/sweeper/internal/bom"
	"github.com/reconware/sweeper/internal/model"
)

func TestFromReport(t *testing.T) {
	t.Parallel()

	job := model.Job{ID: uuid.New(), Profile: "quick"}
	report := model.Report{
		Target: "10.0.0.5",
		Tool:   "nmap",
		Hosts: []model.Host{
			{
				Addr:  "10.0.0.5",
				State: "up",
				Ports: []model.Port{
					{Number: 22, Protocol: "tcp", State: "open", Service: "ssh", Product: "OpenSSH", Version: "9.6"},
					{Number: 443, Protocol: "tcp", State: "closed", Service: "https"},
				},
			},
			{Addr: "10.0.0.6", State: "down"},
		},
	}

	doc := bom.FromReport(job, report).BOM()

	require.Equal(t, "CycloneDX", doc.BOMFormat)
	require.True(t, strings.HasPrefix(doc.SerialNumber, "urn:uuid:"))

	require.NotNil(t, doc.Components)
	compos := *doc.Components
	require.Len(t, compos, 4, "two hosts plus two ports")
	require.Equal(t, "scan:host/10.0.0.5", compos[0].BOMRef)
	require.Equal(t, "scan:tcp/open/10.0.0.5:22", compos[1].BOMRef)
	require.Equal(t, "OpenSSH 9.6", compos[1].Description)
	require.Equal(t, "scan:tcp/closed/10.0.0.5:443", compos[2].BOMRef)
	require.Equal(t, "scan:host/10.0.0.6", compos[3].BOMRef)

	require.NotNil(t, doc.Dependencies)
	deps := *doc.Dependencies
	require.Len(t, deps, 3, "host with ports, plus one leaf per port")
	require.Equal(t, "scan:host/10.0.0.5", deps[0].Ref)
	require.Equal(t, []string{
		"scan:tcp/open/10.0.0.5:22",
		"scan:tcp/closed/10.0.0.5:443",
	}, *deps[0].Dependencies)

	require.NotNil(t, doc.Properties)
	props := *doc.Properties
	require.Equal(t, "sweeper:job", props[0].Name)
	require.Equal(t, job.ID.String(), props[0].Value)
}

func TestAsJSON(t *testing.T) {
	t.Parallel()

	job := model.Job{ID: uuid.New(), Profile: "quick"}
	report := model.Report{Target: "10.0.0.5", Tool: "nmap"}

	var buf bytes.Buffer
	require.NoError(t, bom.FromReport(job, report).AsJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "CycloneDX", decoded["bomFormat"])
	// empty arrays must serialize as [], the schema rejects null
	require.NotNil(t, decoded["components"])
}
