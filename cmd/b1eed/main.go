package main

/*------------------------------------------------------------------
 *
 * Purpose: Command-line entry point: parse flags, load configuration,
 *          start the scheduler and TCP server, and shut down cleanly
 *          on signal (spec.md 1, SPEC_FULL.md 4.7).
 *
 * Grounded on the teacher's cmd/direwolf/main.go flag-parsing shape
 * (pflag.StringP/BoolP declarations, a custom pflag.Usage, parse then
 * apply) and cmd/direwolf/main.go's overall init-then-run sequence,
 * stripped of everything specific to audio devices.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	b1ee "github.com/b1eesim/b1ee/src"
	"github.com/spf13/pflag"
)

func main() {
	var configFile = pflag.StringP("config-file", "c", "", "YAML configuration file name.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "b1eed - a virtual Bluetooth Low Energy controller server.\n")
		fmt.Fprintf(os.Stderr, "\nUsage: b1eed [options]\n\n")
		pflag.PrintDefaults()
	}

	cfg := b1ee.DefaultConfig()
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := b1ee.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "b1eed: %v\n", err)
		os.Exit(1)
	}

	// Parse again with the file's values as flag defaults, so only flags
	// given on the command line win over the file.
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	fs.StringP("config-file", "c", "", "YAML configuration file name.")
	flagValues := cfg.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])
	cfg.ApplyFlags(flagValues)

	logger := b1ee.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.RandSeed != 0 {
		b1ee.SeedRand(cfg.RandSeed)
	} else {
		b1ee.SeedRand(time.Now().UnixNano())
	}

	packetLog, err := b1ee.NewPacketLog(cfg.PacketLogDir)
	if err != nil {
		logger.Errorf("packet log: %v", err)
		os.Exit(1)
	}
	defer packetLog.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("shutting down")
		cancel()
	}()

	scheduler := b1ee.NewScheduler()
	if cfg.SchedulerIdle > 0 {
		scheduler.SetIdleSleep(int64(cfg.SchedulerIdle))
	}
	go scheduler.Run(ctx)

	hciRevision, llSubversion := buildIdentity()

	server := b1ee.NewServer(cfg.ListenAddr, scheduler, logger, packetLog, hciRevision, llSubversion)

	if cfg.AnnounceService {
		port := listenPort(cfg.ListenAddr)
		announcer, annErr := b1ee.NewAnnouncer(cfg.ServiceName, port, logger)
		if annErr != nil {
			logger.Warnf("DNS-SD announcement disabled: %v", annErr)
		} else {
			go func() {
				if runErr := announcer.Run(ctx); runErr != nil {
					logger.Warnf("DNS-SD responder stopped: %v", runErr)
				}
			}()
		}
	}

	if err := server.Run(ctx); err != nil {
		logger.Errorf("server: %v", err)
		os.Exit(1)
	}
}

// buildIdentity derives the stable-per-run HCI revision and LMP
// subversion values reported in Read Local Version Information
// (spec.md 6): anything distinguishable across restarts would do,
// the low bits of the process start time are good enough.
func buildIdentity() (hciRevision byte, llSubversion uint16) {
	now := time.Now().UnixNano()

	return byte(now), uint16(now)
}

// listenPort extracts the numeric port from a ":PORT" or
// "host:PORT" listen address for DNS-SD announcement.
func listenPort(listenAddr string) int {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return 0
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}

	return port
}
