package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/backkem/citp/pkg/session"
)

// cliConfig is the merged configuration of both commands.
type cliConfig struct {
	Name             string
	ShowName         string
	Type             string
	State            string
	Feeds            []string
	SourceKey        uint32
	FrameInterval    time.Duration
	AnnounceInterval time.Duration
	LegacyGroup      bool
	Interface        string
	ListenAddr       string
	AdvertiseIP      net.IP
	MetricsAddr      string
	LogLevel         string
}

func defaultConfig() cliConfig {
	return cliConfig{
		Name:             "citp-laser",
		ShowName:         "citp-laser",
		State:            "Running",
		Feeds:            []string{"laser 0"},
		FrameInterval:    session.DefaultFrameInterval,
		AnnounceInterval: session.DefaultAnnounceInterval,
		ListenAddr:       ":0",
	}
}

type fileConfig struct {
	Name             string   `toml:"name"`
	ShowName         string   `toml:"show_name"`
	Type             string   `toml:"type"`
	State            string   `toml:"state"`
	Feeds            []string `toml:"feeds"`
	SourceKey        uint32   `toml:"source_key"`
	FrameInterval    string   `toml:"frame_interval"`
	AnnounceInterval string   `toml:"announce_interval"`
	LegacyGroup      bool     `toml:"legacy_group"`
	Interface        string   `toml:"interface"`
	ListenAddr       string   `toml:"listen_addr"`
	AdvertiseIP      string   `toml:"advertise_ip"`
	MetricsAddr      string   `toml:"metrics_addr"`
	LogLevel         string   `toml:"log_level"`
}

func loadConfigFile(path string) (cliConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cliConfig{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	setString := func(key string, dst *string, v string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(v)
		}
	}
	setString("name", &cfg.Name, raw.Name)
	setString("show_name", &cfg.ShowName, raw.ShowName)
	setString("type", &cfg.Type, raw.Type)
	setString("state", &cfg.State, raw.State)
	setString("interface", &cfg.Interface, raw.Interface)
	setString("listen_addr", &cfg.ListenAddr, raw.ListenAddr)
	setString("metrics_addr", &cfg.MetricsAddr, raw.MetricsAddr)
	setString("log_level", &cfg.LogLevel, raw.LogLevel)

	if meta.IsDefined("feeds") {
		cfg.Feeds = normalizeFeeds(raw.Feeds)
	}
	if meta.IsDefined("source_key") {
		cfg.SourceKey = raw.SourceKey
	}
	if meta.IsDefined("legacy_group") {
		cfg.LegacyGroup = raw.LegacyGroup
	}

	if meta.IsDefined("frame_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.FrameInterval))
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse frame_interval: %w", err)
		}
		cfg.FrameInterval = d
	}
	if meta.IsDefined("announce_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AnnounceInterval))
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse announce_interval: %w", err)
		}
		cfg.AnnounceInterval = d
	}
	if meta.IsDefined("advertise_ip") {
		ip := net.ParseIP(strings.TrimSpace(raw.AdvertiseIP))
		if ip == nil {
			return cliConfig{}, fmt.Errorf("parse advertise_ip: invalid address %q", raw.AdvertiseIP)
		}
		cfg.AdvertiseIP = ip
	}

	return cfg, nil
}

func normalizeFeeds(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		if v := strings.TrimSpace(name); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// sessionFeeds builds one SquareFeed per configured name.
func sessionFeeds(names []string) []session.Feed {
	feeds := make([]session.Feed, len(names))
	for i, name := range names {
		feeds[i] = &session.SquareFeed{Label: name, Index: i}
	}
	return feeds
}
