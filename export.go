package drvstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cloudradar-monitoring/drvstore/pkg/driverstore"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"

	dateLayout = "2006-01-02"
)

// Exporter writes driver store entries in one output format.
type Exporter interface {
	Export(entries []driverstore.Entry, w io.Writer) error
	Format() string
}

func NewExporter(format string) (Exporter, error) {
	switch format {
	case FormatText:
		return textExporter{}, nil
	case FormatJSON:
		return jsonExporter{}, nil
	case FormatYAML:
		return yamlExporter{}, nil
	case FormatCSV:
		return csvExporter{}, nil
	default:
		return nil, errors.Errorf("unknown output format '%s'", format)
	}
}

type entryRecord struct {
	PublishedName  string  `json:"published_name" yaml:"published_name"`
	InfName        string  `json:"inf_name" yaml:"inf_name"`
	Class          string  `json:"class" yaml:"class"`
	Provider       string  `json:"provider" yaml:"provider"`
	Signer         string  `json:"signer" yaml:"signer"`
	Date           string  `json:"date" yaml:"date"`
	Version        string  `json:"version" yaml:"version"`
	FolderLocation string  `json:"folder_location" yaml:"folder_location"`
	SizeBytes      int64   `json:"size_B" yaml:"size_B"`
	BootCritical   bool    `json:"boot_critical" yaml:"boot_critical"`
	Inbox          bool    `json:"inbox" yaml:"inbox"`
	DeviceName     *string `json:"device_name,omitempty" yaml:"device_name,omitempty"`
	DevicePresent  *bool   `json:"device_present,omitempty" yaml:"device_present,omitempty"`
}

func newEntryRecord(e driverstore.Entry) entryRecord {
	r := entryRecord{
		PublishedName:  e.DriverPublishedName,
		InfName:        e.DriverInfName,
		Class:          e.DriverClass,
		Provider:       e.DriverPkgProvider,
		Signer:         e.DriverSignerName,
		Version:        e.DriverVersion.String(),
		FolderLocation: e.DriverFolderLocation,
		SizeBytes:      e.DriverSize,
		BootCritical:   e.BootCritical,
		Inbox:          e.Inbox,
		DeviceName:     e.DeviceName,
		DevicePresent:  e.DevicePresent,
	}
	if !e.DriverDate.IsZero() {
		r.Date = e.DriverDate.Format(dateLayout)
	}
	return r
}

func newEntryRecords(entries []driverstore.Entry) []entryRecord {
	records := make([]entryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, newEntryRecord(e))
	}
	return records
}

type jsonExporter struct{}

func (jsonExporter) Format() string {
	return FormatJSON
}

func (jsonExporter) Export(entries []driverstore.Entry, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newEntryRecords(entries))
}

type yamlExporter struct{}

func (yamlExporter) Format() string {
	return FormatYAML
}

func (yamlExporter) Export(entries []driverstore.Entry, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newEntryRecords(entries)); err != nil {
		return errors.Wrap(err, "failed to encode YAML")
	}
	return enc.Close()
}

var csvHeader = []string{
	"published_name", "inf_name", "class", "provider", "signer", "date", "version",
	"folder_location", "size_B", "boot_critical", "inbox", "device_name", "device_present",
}

type csvExporter struct{}

func (csvExporter) Format() string {
	return FormatCSV
}

func (csvExporter) Export(entries []driverstore.Entry, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range newEntryRecords(entries) {
		var deviceName, devicePresent string
		if r.DeviceName != nil {
			deviceName = *r.DeviceName
		}
		if r.DevicePresent != nil {
			devicePresent = strconv.FormatBool(*r.DevicePresent)
		}

		err := cw.Write([]string{
			r.PublishedName, r.InfName, r.Class, r.Provider, r.Signer, r.Date, r.Version,
			r.FolderLocation, strconv.FormatInt(r.SizeBytes, 10),
			strconv.FormatBool(r.BootCritical), strconv.FormatBool(r.Inbox),
			deviceName, devicePresent,
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

type textExporter struct{}

func (textExporter) Format() string {
	return FormatText
}

func (textExporter) Export(entries []driverstore.Entry, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBLISHED NAME\tINF\tCLASS\tPROVIDER\tVERSION\tDATE\tSIZE\tSIGNER\tDEVICE")

	for _, e := range entries {
		r := newEntryRecord(e)

		device := "-"
		if e.DeviceName != nil {
			device = *e.DeviceName
			if e.DevicePresent != nil && !*e.DevicePresent {
				device += " (not present)"
			}
		}

		signer := r.Signer
		if signer == "" {
			signer = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.PublishedName, r.InfName, r.Class, r.Provider, r.Version, r.Date,
			humanize.Bytes(uint64(r.SizeBytes)), signer, device)
	}

	fmt.Fprintf(tw, "%d driver packages, %s\n", len(entries), humanize.Bytes(uint64(totalSize(entries))))
	return tw.Flush()
}

func totalSize(entries []driverstore.Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.DriverSize
	}
	return total
}
