// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// cfsd is the block locality daemon. One instance runs beside each
// storage node; writers push a copy of every block they store to the
// local cfsd, and readers ask it first so resident blocks are served
// from local disk instead of the cluster.
package main

import (
	"context"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/pnasrat/brisk/blockserver"
)

// Config is the top-level configuration object of the daemon.
var Config = new(struct {
	CFSD struct {
		Listen      string `long:"listen" env:"LISTEN" default:":7654" description:"Address to serve block requests on"`
		DataDir     string `long:"data-dir" env:"DATA_DIR" required:"true" description:"Directory holding resident block files"`
		MetricsAddr string `long:"metrics" env:"METRICS" default:":7655" description:"Address to serve Prometheus metrics on"`
		Instance    string `long:"instance" env:"INSTANCE" description:"Unique name of this process. Auto-generated if not set"`
	} `group:"cfsd" namespace:"cfsd" env-namespace:"CFSD"`

	Log struct {
		Level  string `long:"level" env:"LEVEL" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
		Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
	} `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

func main() {
	parser := flags.NewParser(Config, flags.Default)
	parser.LongDescription = `cfsd keeps verbatim copies of recently written file blocks on local
disk and answers lookup requests from co-located clients, so block reads
stay off the cluster wherever a local copy exists.`

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	initLog()

	if Config.CFSD.Instance == "" {
		rand.Seed(time.Now().UnixNano()) // Seed generator for Generate's use.
		Config.CFSD.Instance = petname.Generate(2, "-")
	}

	log.WithFields(log.Fields{
		"instance": Config.CFSD.Instance,
		"listen":   Config.CFSD.Listen,
		"dataDir":  Config.CFSD.DataDir,
	}).Info("starting cfsd")

	prometheus.MustRegister(blockserver.Collectors()...)

	vol, err := blockserver.NewVolume(afero.NewOsFs(), Config.CFSD.DataDir)
	if err != nil {
		log.WithField("err", err).Fatal("failed to open block volume")
	}

	listener, err := net.Listen("tcp", Config.CFSD.Listen)
	if err != nil {
		log.WithField("err", err).Fatal("failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := blockserver.NewServer(listener, vol)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx) })
	g.Go(func() error { return serveMetrics(ctx, Config.CFSD.MetricsAddr) })

	if err := g.Wait(); err != nil {
		log.WithField("err", err).Fatal("cfsd failed")
	}
	log.Info("goodbye")
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func initLog() {
	switch Config.Log.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}

	if lvl, err := log.ParseLevel(Config.Log.Level); err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	} else {
		log.SetLevel(lvl)
	}
}
