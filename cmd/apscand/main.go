package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	apscan "github.com/dogeorg/apscan/pkg"
)

func main() {
	var port int
	var bind string
	var configPath string
	var interval time.Duration
	var reportURL string
	var verbose bool
	var help bool

	flag.IntVar(&port, "port", 8080, "REST API Port")
	flag.StringVar(&bind, "addr", "127.0.0.1", "Address to bind to")
	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.DurationVar(&interval, "interval", 0, "Rescan every interval, 0 to scan only on request")
	flag.StringVar(&reportURL, "report-url", "", "POST every finished scan to this URL")
	flag.BoolVar(&verbose, "v", false, "Be verbose")
	flag.BoolVar(&help, "h", false, "Get help")
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	config, err := apscan.LoadConfigFile(configPath, apscan.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't load config: %v\n", err)
		os.Exit(1)
	}

	// flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = port
		case "addr":
			config.Bind = bind
		case "interval":
			config.RescanInterval = interval
		case "report-url":
			config.ReportURL = reportURL
		case "v":
			config.Verbose = verbose
		}
	})

	srv := Server(config)
	srv.Start()
}
