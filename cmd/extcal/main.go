// Command extcal builds the transform interfaces of a calibration rig, reads
// each one once and writes the broadcast poses to a launch file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/config"
	"github.com/banshee-data/extrinsic.cal/internal/monitoring"
	"github.com/banshee-data/extrinsic.cal/internal/transform"
	"github.com/banshee-data/extrinsic.cal/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Rig configuration file (.json)")
	dbPath      = flag.String("db", "", "Joint store database (defaults to joint_store_path from the config)")
	outPath     = flag.String("out", "", "Launch file to append static transforms to (defaults to launch_file_path from the config)")
	timeout     = flag.Duration("timeout", 10*time.Second, "Per-interface pull timeout")
	debugListen = flag.String("debug-listen", "", "Serve /debug routes on this address while running (e.g. localhost:8081)")
	verbose     = flag.Bool("v", false, "Log lookup retries and broadcast ticks")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *timeout <= 0 {
		log.Fatal("timeout must be positive")
	}

	monitoring.SetWriter(os.Stderr, "[extcal] ")
	var diag io.Writer
	if *verbose {
		diag = os.Stderr
	}
	transform.SetLogWriters(os.Stderr, diag)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath:  *configPath,
		dbPath:      *dbPath,
		outPath:     *outPath,
		timeout:     *timeout,
		debugListen: *debugListen,
	}
	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("extcal: %v", err)
	}
}
