package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/siminhale/siminhale/internal/app"
	"github.com/siminhale/siminhale/internal/log"
	"github.com/siminhale/siminhale/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "siminhale.yaml", "Path to the YAML configuration")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	listen := flag.String("listen", "", "Listen address (overrides server.listen_addr)")
	port := flag.Int("port", 0, "Listen port (overrides server.port)")
	noTracking := flag.Bool("no-tracking", false, "Serve without the run history endpoints")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("siminhale-server %s\n", version)
		os.Exit(0)
	}

	cfgData, err := config.Load(*cfgFile, false)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(log.Options{Debug: *debug || cfgData.Logging.Debug, File: cfgData.Logging.File}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *listen != "" {
		cfgData.Server.ListenAddr = *listen
	}
	if *port != 0 {
		cfgData.Server.Port = *port
	}

	application := app.New(cfgData, log.Named("server"))
	application.WithoutTracking = *noTracking
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}
