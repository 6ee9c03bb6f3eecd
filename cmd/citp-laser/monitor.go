package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/citp/pkg/caex"
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/session"
	"github.com/backkem/citp/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	monitorListen    string
	monitorAdvertise string
	monitorName      string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Act as a visualiser and report connected laser peers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("listen") {
			cfg.ListenAddr = monitorListen
		}
		if flags.Changed("name") {
			cfg.Name = monitorName
		}
		if flags.Changed("advertise") {
			if cfg.AdvertiseIP = net.ParseIP(monitorAdvertise); cfg.AdvertiseIP == nil {
				return errors.New("--advertise: invalid IP address")
			}
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
		host, err := session.NewHost(session.HostConfig{
			Name:             cfg.Name,
			Type:             cfg.Type,
			State:            cfg.State,
			ShowName:         cfg.ShowName,
			AdvertiseIP:      cfg.AdvertiseIP,
			ListenAddr:       cfg.ListenAddr,
			Interface:        ifi,
			JoinLegacyGroup:  cfg.LegacyGroup,
			AnnounceInterval: cfg.AnnounceInterval,
			Metrics:          session.NewMetrics(reg, "host"),
			LoggerFactory:    loggerFactory,
			OnMessage: func(from transport.PeerAddress, m *message.Message) {
				log.Debugf("%s: %s/%s", from, m.Payload.Layer().Cookie, m.Payload.ContentType())
			},
			OnFrame: func(from transport.PeerAddress, f *caex.LaserFeedFrame) {
				log.Tracef("%s: feed %d frame %d, %d points", from, f.Feed, f.Sequence, len(f.Points))
			},
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		router := newRouter(reg, func() any { return host.Peers() })
		if err := serveHTTP(ctx, cfg.MetricsAddr, router, log); err != nil {
			return err
		}

		log.Infof("monitoring as %q on TCP port %d", cfg.Name, host.Port())
		err = host.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	f := monitorCmd.Flags()
	f.StringVar(&monitorListen, "listen", "", "TCP listen address, e.g. :6436")
	f.StringVar(&monitorAdvertise, "advertise", "", "IP address written into the PLoc name")
	f.StringVar(&monitorName, "name", "", "peer name sent in PLoc")
}
