package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cloudradar-monitoring/drvstore"
)

var (
	// set on build:
	// go build -o drvstore -ldflags="-X main.version=$(git describe --always --long --dirty --tag)" github.com/cloudradar-monitoring/drvstore/cmd/drvstore
	version string
)

func askForConfirmation(s string) bool {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Printf("%s [y/n]: ", s)

		response, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("Failed to read confirmation: %s", err.Error())
		}

		response = strings.ToLower(strings.TrimSpace(response))

		if response == "y" || response == "yes" {
			return true
		} else if response == "n" || response == "no" {
			return false
		}
	}
}

func main() {
	// Setup flag pointers
	outputFilePtr := flag.String("o", "", "file to write the results (default stdout)")
	cfgPathPtr := flag.String("c", drvstore.DefaultCfgPath, "config file path")
	logLevelPtr := flag.String("v", "", "log level – overrides the level in config file (values \"error\",\"info\",\"debug\")")
	offlinePtr := flag.String("offline", "", "work on the driver store of the image mounted at this path instead of the running system")
	formatPtr := flag.String("format", "", "output format – overrides the format in config file (values \"text\",\"json\",\"yaml\",\"csv\")")
	listPtr := flag.Bool("l", false, "list the driver packages")
	addPtr := flag.String("a", "", "add the driver package described by this INF file")
	installPtr := flag.Bool("install", false, "with -a, also install the driver on matching devices (online only)")
	deletePtr := flag.String("d", "", "delete the driver packages with these published names (comma separated, e.g. oem12.inf,oem14.inf)")
	oldPtr := flag.Bool("old", false, "delete the driver packages superseded by a newer version")
	forcePtr := flag.Bool("force", false, "with -d or -old, delete even if a device still uses the package (online only)")
	yesPtr := flag.Bool("y", false, "don't ask for confirmation before deleting")
	printConfigPtr := flag.Bool("p", false, "print the active config")
	versionPtr := flag.Bool("version", false, "show the drvstore version")

	flag.Parse()

	// version should be handled first to ensure it will be accessible in case of fatal errors before
	handleFlagVersion(*versionPtr)

	if countActions(*listPtr, *addPtr != "", *deletePtr != "", *oldPtr) > 1 {
		fmt.Println("Only one of list(-l), add(-a), delete(-d) and delete old(-old) can be used at once")
		os.Exit(1)
	}

	cfg, err := drvstore.HandleAllConfigSetup(*cfgPathPtr)
	if err != nil {
		log.Fatalf("Failed to handle drvstore configuration: %s", err.Error())
	}

	handleFlagOffline(cfg, *offlinePtr)
	handleFlagFormat(cfg, *formatPtr)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration '%s': %s", *cfgPathPtr, err.Error())
	}

	handleFlagPrintConfig(*printConfigPtr, cfg)

	ds, err := drvstore.New(cfg, *cfgPathPtr, version)
	if err != nil {
		log.Fatalf("Failed to open the driver store: %s", err.Error())
	}

	ds.ConfigureLogger()
	setDefaultLogFormatter()

	// log level set in flag has a precedence. If specified we need to set it ASAP
	handleFlagLogLevel(ds, *logLevelPtr)

	ds.LogHostInfo()

	output := handleFlagOutput(*outputFilePtr)
	if output != os.Stdout {
		defer output.Close()
	}

	switch {
	case *addPtr != "":
		handleFlagAdd(ds, *addPtr, *installPtr)
	case *deletePtr != "":
		handleFlagDelete(ds, splitNames(*deletePtr), *forcePtr, *yesPtr)
	case *oldPtr:
		handleFlagDeleteOld(ds, output, *forcePtr, *yesPtr)
	default:
		// listing is the default action, -l only makes it explicit
		handleFlagList(ds, output)
	}
}

func countActions(actions ...bool) int {
	n := 0
	for _, a := range actions {
		if a {
			n++
		}
	}
	return n
}

func splitNames(list string) []string {
	var names []string
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func handleFlagVersion(versionFlag bool) {
	if versionFlag {
		fmt.Printf("drvstore v%s released under MIT license. https://github.com/cloudradar-monitoring/drvstore/\n", version)
		os.Exit(0)
	}
}

func handleFlagPrintConfig(printConfig bool, cfg *drvstore.Config) {
	if printConfig {
		fmt.Println(cfg.DumpToml())
		os.Exit(0)
	}
}

func handleFlagOffline(cfg *drvstore.Config, imagePath string) {
	if imagePath == "" {
		return
	}

	cfg.Mode = drvstore.ModeOffline
	cfg.ImagePath = imagePath
}

func handleFlagFormat(cfg *drvstore.Config, format string) {
	if format != "" {
		cfg.OutputFormat = format
	}
}

func handleFlagLogLevel(ds *drvstore.Drvstore, logLevel string) {
	// Check loglevel and if needed warn user and set to default
	if lvl := drvstore.LogLevel(logLevel); lvl.IsValid() {
		ds.SetLogLevel(lvl)
	} else if logLevel != "" {
		log.Warnf("Invalid log level: \"%s\". Set to default: \"%s\"", logLevel, ds.Config.LogLevel)
	}
}

func handleFlagOutput(outputFile string) *os.File {
	if outputFile == "" || outputFile == "-" {
		return os.Stdout
	}

	// if the output file does not exist, try to create it
	dir := filepath.Dir(outputFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			log.WithError(err).Fatalf("Failed to create the output file directory: '%s'", dir)
		}
	}

	output, err := os.OpenFile(outputFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		log.WithError(err).Fatalf("Failed to open the output file: '%s'", outputFile)
	}

	return output
}

func handleFlagList(ds *drvstore.Drvstore, output io.Writer) {
	entries, err := ds.List()
	if err != nil {
		log.Fatalf("Failed to list the driver store: %s", err.Error())
	}

	if err := ds.Export(entries, output); err != nil {
		log.Fatalf("Failed to write the driver packages: %s", err.Error())
	}
}

func handleFlagAdd(ds *drvstore.Drvstore, infPath string, install bool) {
	if abs, err := filepath.Abs(infPath); err == nil {
		infPath = abs
	}

	if install && ds.Config.Mode == drvstore.ModeOffline {
		log.Warn("Install(-install) is ignored in offline mode")
	}

	if err := ds.Add(infPath, install); err != nil {
		log.Fatalf("Failed to add the driver package: %s", err.Error())
	}

	fmt.Printf("Driver package '%s' added to the %v driver store\n", infPath, ds.Store().Target())
}

func handleFlagDelete(ds *drvstore.Drvstore, names []string, force, yes bool) {
	if len(names) == 0 {
		fmt.Println("No published names given to delete(-d)")
		os.Exit(1)
	}

	if !yes && !askForConfirmation(fmt.Sprintf("Delete %s from the %v driver store?", strings.Join(names, ", "), ds.Store().Target())) {
		os.Exit(0)
	}

	if err := ds.Delete(names, force); err != nil {
		log.Fatalf("Failed to delete driver packages: %s", err.Error())
	}

	fmt.Printf("Deleted %d driver packages\n", len(names))
}

func handleFlagDeleteOld(ds *drvstore.Drvstore, output io.Writer, force, yes bool) {
	old, err := ds.ListOld()
	if err != nil {
		log.Fatalf("Failed to list the driver store: %s", err.Error())
	}

	if len(old) == 0 {
		fmt.Println("No superseded driver packages found")
		return
	}

	if !yes {
		if err := ds.Export(old, os.Stdout); err != nil {
			log.Fatalf("Failed to write the driver packages: %s", err.Error())
		}
		if !askForConfirmation(fmt.Sprintf("Delete these %d driver packages?", len(old))) {
			os.Exit(0)
		}
	}

	// delete exactly the listed packages, the store may have changed since
	deleted, err := ds.DeleteEntries(old, force)
	if exportErr := ds.Export(deleted, output); exportErr != nil {
		log.WithError(exportErr).Error("Failed to write the deleted driver packages")
	}
	if err != nil {
		log.Fatalf("Failed to delete driver packages: %s", err.Error())
	}
}

func setDefaultLogFormatter() {
	tfmt := log.TextFormatter{FullTimestamp: true}
	if runtime.GOOS == "windows" {
		tfmt.DisableColors = true
	}

	log.SetFormatter(&tfmt)
}
