package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/citp/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	runName   string
	runShow   string
	runFeeds  []string
	runLegacy bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream laser feeds to a visualiser",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("name") {
			cfg.Name = runName
		}
		if flags.Changed("show") {
			cfg.ShowName = runShow
		}
		if flags.Changed("feed") {
			cfg.Feeds = normalizeFeeds(runFeeds)
		}
		if flags.Changed("legacy-group") {
			cfg.LegacyGroup = runLegacy
		}

		loggerFactory, err := newLoggerFactory(cfg.LogLevel)
		if err != nil {
			return err
		}
		log := loggerFactory.NewLogger("citp-laser")

		ifi, err := lookupInterface(cfg.Interface)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		s, err := session.New(session.Config{
			Name:             cfg.Name,
			Type:             cfg.Type,
			State:            cfg.State,
			ShowName:         cfg.ShowName,
			Feeds:            sessionFeeds(cfg.Feeds),
			SourceKey:        cfg.SourceKey,
			FrameInterval:    cfg.FrameInterval,
			AnnounceInterval: cfg.AnnounceInterval,
			Interface:        ifi,
			JoinLegacyGroup:  cfg.LegacyGroup,
			Metrics:          session.NewMetrics(reg, "session"),
			LoggerFactory:    loggerFactory,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		router := newRouter(reg, func() any { return s.Status() })
		if err := serveHTTP(ctx, cfg.MetricsAddr, router, log); err != nil {
			return err
		}

		log.Infof("streaming %d feed(s) as %q, source key %08x", len(cfg.Feeds), cfg.Name, s.SourceKey())
		err = s.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runName, "name", "", "peer name sent in PLoc and PNam")
	f.StringVar(&runShow, "show", "", "show name sent in reply to EnterShow")
	f.StringSliceVar(&runFeeds, "feed", nil, "feed name; repeat for more feeds")
	f.BoolVar(&runLegacy, "legacy-group", false, "also join the 224.0.0.180 discovery group")
}
