// Command playerctld runs the player control core as a standalone
// daemon: a websocket bus for the player and UI connections, a
// Prometheus metrics endpoint, and the orchestrator wiring one
// Control per configured audio source.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundboard/playerctld/internal/config"
	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/internal/nullcrawler"
	"github.com/soundboard/playerctld/pkg/audiosource"
	"github.com/soundboard/playerctld/pkg/bus/wsbus"
	"github.com/soundboard/playerctld/pkg/control"
	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/playerdata"
	"github.com/soundboard/playerctld/pkg/streamid"
	"github.com/soundboard/playerctld/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	envPath := flag.String("env", ".env", "path to an optional .env overlay")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playerctld: %v\n", err)
		os.Exit(1)
	}

	corelog.Configure(cfg.LogLevel, nil)
	log := corelog.For("main")

	d := newDaemon(cfg)

	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := http.ListenAndServe(cfg.MetricsAddr, promhttp.Handler()); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws/player", wsbus.NewHandler(d.acceptPlayer))
	mux.Handle("/ws/ui", wsbus.NewHandler(d.acceptUI))

	log.Info().Str("addr", cfg.ListenAddr).Msg("bus listening")
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("bus server stopped")
	}
}

// daemon holds one Control per configured audio source, sharing a
// single PlayerData and stream-id allocator across all of them
// (spec.md §3: stream ids are a process-wide resource).
//
// Only one Control at a time is wired up to actually receive bus
// traffic (activeName): the bus vocabulary names a stream, not a
// source, so choosing which configured source's Control answers a
// given connection is a policy decision this module makes simply
// (first configured source) rather than exposing source-switching
// over the wire — spec.md's audio-source hand-over (§4.I's
// source_selected_notification) is still reachable directly against
// any Control for callers that need it.
type daemon struct {
	alloc *streamid.Allocator
	data  *playerdata.PlayerData

	controls   map[string]*control.Control
	activeName string
}

func newDaemon(cfg config.Config) *daemon {
	alloc := streamid.New(1, streamid.DefaultMaxLive)
	data := playerdata.New(alloc)

	d := &daemon{alloc: alloc, data: data, controls: make(map[string]*control.Control, len(cfg.Sources))}

	for _, sc := range cfg.Sources {
		perms, err := sc.Resolve()
		if err != nil {
			corelog.For("main").Fatal().Err(err).Str("source", sc.Name).Msg("invalid audio source config")
		}

		source := audiosource.New(sc.Name, perms)
		handle := crawler.NewHandle(nullcrawler.New(), nullcrawler.New())

		c := control.New(alloc)
		c.PlugPlayerData(data)
		c.PlugCrawlerHandle(handle)
		c.PlugAudioSource(source)
		c.SetEnforcedIntentions(true)

		d.controls[sc.Name] = c
		if d.activeName == "" {
			d.activeName = sc.Name
			source.SelectNow()
		}
	}

	return d
}

// acceptPlayer wires an incoming player connection as the transport
// backend for every plugged Control, then serves its notification
// stream against the active source's Control until the connection
// closes.
func (d *daemon) acceptPlayer(conn *wsbus.Conn, r *http.Request) {
	backend := wsbus.NewPlayerBackend(conn)
	proxy := transport.New(backend)

	for _, c := range d.controls {
		c.PlugTransports(proxy, proxy)
	}

	corelog.For("main").Info().Str("remote", r.RemoteAddr).Msg("player connection established")
	wsbus.Serve(conn, d.controls[d.activeName])
}

// acceptUI serves one UI connection's command stream against the
// active source's Control.
func (d *daemon) acceptUI(conn *wsbus.Conn, r *http.Request) {
	corelog.For("main").Info().Str("remote", r.RemoteAddr).Msg("ui connection established")
	wsbus.Serve(conn, d.controls[d.activeName])
}
