// Command ax25term is an interactive AX.25 connected-mode terminal over
// a KISS-over-TCP TNC.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
	"github.com/kc3smw/ax25term/internal/ax25term/config"
	"github.com/kc3smw/ax25term/internal/ax25term/kiss"
	"github.com/kc3smw/ax25term/internal/ax25term/logx"
	"github.com/kc3smw/ax25term/internal/ax25term/metrics"
	"github.com/kc3smw/ax25term/internal/ax25term/session"
)

const usageLine = "usage: ax25term [flags] MYCALL [TARGET] [HOST PORT | HOST:PORT]"

// invocation is the parsed positional invocation surface of spec §6:
// MYCALL, an optional auto-connect TARGET, and an optional TNC address
// given as two tokens or a single "HOST:PORT" token.
type invocation struct {
	myCall ax25.Callsign
	target ax25.Callsign
	hasTgt bool
	host   string
	port   int
	hasHP  bool
}

func parseInvocation(args []string) (invocation, error) {
	var inv invocation
	if len(args) == 0 {
		return inv, fmt.Errorf("MYCALL is required")
	}
	myCall, err := ax25.ParseCallsign(args[0])
	if err != nil {
		return inv, fmt.Errorf("invalid MYCALL: %w", err)
	}
	inv.myCall = myCall
	rest := args[1:]

	if len(rest) > 0 {
		if target, err := ax25.ParseCallsign(rest[0]); err == nil {
			inv.target = target
			inv.hasTgt = true
			rest = rest[1:]
		}
	}

	switch len(rest) {
	case 0:
		// no TNC address override; config/flags/defaults apply.
	case 1:
		host, portStr, ok := strings.Cut(rest[0], ":")
		if !ok {
			return inv, fmt.Errorf("expected HOST:PORT, got %q", rest[0])
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return inv, fmt.Errorf("invalid PORT in %q: %w", rest[0], err)
		}
		inv.host, inv.port, inv.hasHP = host, port, true
	case 2:
		port, err := strconv.Atoi(rest[1])
		if err != nil {
			return inv, fmt.Errorf("invalid PORT %q: %w", rest[1], err)
		}
		inv.host, inv.port, inv.hasHP = rest[0], port, true
	default:
		return inv, fmt.Errorf("too many arguments")
	}
	return inv, nil
}

func main() {
	var (
		configFlag  = pflag.StringP("config", "f", "", "path to a YAML config file")
		debugFlag   = pflag.BoolP("debug", "d", false, "start with frame tracing enabled")
		metricsFlag = pflag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address, e.g. :9090")
	)
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, usageLine)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	inv, err := parseInvocation(pflag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "ax25term:", err)
		pflag.Usage()
		os.Exit(2)
	}
	myCall := inv.myCall

	cfg := config.Default()
	if *configFlag != "" {
		cfg, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ax25term: loading config:", err)
			os.Exit(2)
		}
	}
	if inv.hasHP {
		cfg.Host = inv.host
		cfg.Port = inv.port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "ax25term: invalid config:", err)
		os.Exit(2)
	}

	log := logx.New(myCall.String())
	log.SetDebug(*debugFlag)

	var m *metrics.Metrics
	if *metricsFlag != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsFlag, mux); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	transport, err := kiss.Dial(addr, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ax25term: connecting to TNC:", err)
		os.Exit(1)
	}
	defer transport.Close()
	log.Info("connected to TNC", "addr", addr)

	term := newStdioTerminal()
	disp := session.New(cfg, myCall, transport, term, log, m)
	if inv.hasTgt {
		disp.Connect(inv.target, nil)
	}

	if err := disp.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "ax25term:", err)
		os.Exit(1)
	}
}
