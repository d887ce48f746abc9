package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/itzg/go-flagsfiller"
	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway"
)

var (
	versionFlag = flag.Bool("version", false, "Output version and exit")
	cpuProfile  = flag.String("cpu-profile", "", "Enables CPU profiling and writes to given path")
	routesFile  = flag.String("routes-file", "", "Path to the routes config file")
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg := &gateway.Config{}

	filler := flagsfiller.New()
	if err := filler.Fill(flag.CommandLine, cfg); err != nil {
		logrus.WithError(err).Fatal("gateway: failed to register configuration flags")
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s, commit %s, built at %s\n", version, commit, date)
		os.Exit(0)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logrus.WithError(err).Fatal("gateway: failed to create cpu profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			logrus.WithError(err).Fatal("gateway: failed to start cpu profile")
		}
		defer pprof.StopCPUProfile()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := gateway.NewServer(ctx, cfg, *routesFile)
	if err != nil {
		logrus.WithError(err).Fatal("gateway: failed to build server")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() {
		runErr <- srv.Run(ctx)
	}()

	select {
	case <-sig:
		logrus.Info("gateway: shutdown requested")
		srv.Shutdown()
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			logrus.WithError(err).Error("gateway: accept loop exited")
		}
	}
}
