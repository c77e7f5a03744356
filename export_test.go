package drvstore

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cloudradar-monitoring/drvstore/pkg/dism"
	"github.com/cloudradar-monitoring/drvstore/pkg/driverstore"
)

func sampleEntries() []driverstore.Entry {
	deviceName := "Foo Adapter"
	present := false

	return []driverstore.Entry{
		{
			DriverClass:          "Network adapters",
			DriverInfName:        "netfoo.inf",
			DriverPublishedName:  "oem12.inf",
			DriverPkgProvider:    "Foo Networks",
			DriverSignerName:     "Microsoft Windows Hardware Compatibility Publisher",
			DriverDate:           time.Date(2019, time.June, 21, 0, 0, 0, 0, time.UTC),
			DriverVersion:        dism.PackVersion(10, 2, 1234, 5),
			DriverFolderLocation: `C:\Windows\System32\DriverStore\FileRepository\netfoo.inf_amd64_1a2b`,
			DriverSize:           2048,
			BootCritical:         true,
			DeviceName:           &deviceName,
			DevicePresent:        &present,
		},
		{
			DriverClass:         "Printers",
			DriverInfName:       "prnbar.inf",
			DriverPublishedName: "oem3.inf",
			DriverPkgProvider:   "Bar Printing",
			Inbox:               true,
		},
	}
}

func TestNewExporter(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatYAML, FormatCSV} {
		e, err := NewExporter(format)
		require.NoError(t, err)
		assert.Equal(t, format, e.Format())
	}

	_, err := NewExporter("xml")
	require.Error(t, err)
	_, hasStack := err.(interface{ StackTrace() errors.StackTrace })
	assert.True(t, hasStack)
}

func TestJSONExport(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, jsonExporter{}.Export(sampleEntries(), buf))

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)

	assert.Equal(t, "oem12.inf", records[0]["published_name"])
	assert.Equal(t, "10.2.1234.5", records[0]["version"])
	assert.Equal(t, "2019-06-21", records[0]["date"])
	assert.Equal(t, 2048.0, records[0]["size_B"])
	assert.Equal(t, "Foo Adapter", records[0]["device_name"])
	assert.Equal(t, false, records[0]["device_present"])

	_, hasDevice := records[1]["device_name"]
	assert.False(t, hasDevice, "unset device fields are omitted")
	assert.Equal(t, "", records[1]["date"])
}

func TestYAMLExport(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, yamlExporter{}.Export(sampleEntries(), buf))

	var records []entryRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, newEntryRecords(sampleEntries()), records)
}

func TestCSVExport(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, csvExporter{}.Export(sampleEntries(), buf))

	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"oem12.inf", "netfoo.inf", "Network adapters", "Foo Networks",
		"Microsoft Windows Hardware Compatibility Publisher", "2019-06-21", "10.2.1234.5",
		`C:\Windows\System32\DriverStore\FileRepository\netfoo.inf_amd64_1a2b`, "2048",
		"true", "false", "Foo Adapter", "false",
	}, rows[1])
	assert.Equal(t, "", rows[2][11])
	assert.Equal(t, "", rows[2][12])
}

func TestTextExport(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, textExporter{}.Export(sampleEntries(), buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "PUBLISHED NAME"))
	assert.Contains(t, lines[1], "oem12.inf")
	assert.Contains(t, lines[1], "2.0 kB")
	assert.Contains(t, lines[1], "Foo Adapter (not present)")
	assert.Contains(t, lines[2], "oem3.inf")
	assert.Equal(t, "2 driver packages, 2.0 kB", strings.TrimSpace(lines[3]))
}
