// Command tripctl submits one trip to the routes backend and writes the
// resulting map overlay as GeoJSON.
//
//	tripctl -origin Jeddah -destination Riyadh [-backend URL] [-live] [-out file]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/config"
	"github.com/tripmap/tripmap/internal/render"
	"github.com/tripmap/tripmap/internal/routing/providers"
	"github.com/tripmap/tripmap/internal/trip"
	"github.com/tripmap/tripmap/internal/trip/routesclient"
)

type options struct {
	origin      string
	destination string
	backend     string
	live        bool
	out         string
	debug       bool
	timeout     time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, cfg config.Config, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("tripctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.origin, "origin", "", "trip origin, a place name or address")
	fs.StringVar(&opts.destination, "destination", "", "trip destination, a place name or address")
	fs.StringVar(&opts.backend, "backend", cfg.BackendURL, "routes backend base URL")
	fs.BoolVar(&opts.live, "live", false, "look up each alternative live from the configured routes provider")
	fs.StringVar(&opts.out, "out", "", "write GeoJSON to this file instead of stdout")
	fs.BoolVar(&opts.debug, "debug", false, "dump every session state to stderr")
	fs.DurationVar(&opts.timeout, "timeout", routesclient.DefaultTimeout, "overall time limit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "tripctl: %v\n", err)
		return 2
	}

	opts, err := parseFlags(args, cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := zerolog.WarnLevel
	if opts.debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()

	resolver, err := newResolver(opts, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "tripctl: %v\n", err)
		return 2
	}

	fetcher, err := routesclient.New(routesclient.Config{
		BaseURL: opts.backend,
		Timeout: opts.timeout,
		Logger:  log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "tripctl: %v\n", err)
		return 2
	}

	session := trip.NewSession(trip.SessionConfig{
		Fetcher:  fetcher,
		Resolver: resolver,
		Logger:   log,
		OnChange: func(st trip.State) {
			if opts.debug {
				pretty.Fprintf(stderr, "%# v\n", st) //nolint:errcheck // diagnostics only
			}
		},
	})

	out := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			fmt.Fprintf(stderr, "tripctl: %v\n", err)
			return 2
		}
		defer f.Close()
		out = f
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	st := session.Submit(ctx, trip.TripQuery{Origin: opts.origin, Destination: opts.destination})

	renderer := render.NewGeoJSONRenderer(out, render.Config{Indent: true})
	if err := trip.RenderState(renderer, st); err != nil {
		fmt.Fprintf(stderr, "tripctl: %v\n", err)
		return 2
	}

	if st.Status == trip.StatusFailed {
		fmt.Fprintf(stderr, "tripctl: %s\n", st.Message)
		return 1
	}

	for _, r := range st.Routes {
		fmt.Fprintf(stderr, "%d  %s  %s  %s  %s\n", r.Index, r.Color, r.Distance, r.Duration, r.Summary)
	}
	if len(st.Routes) == 0 {
		fmt.Fprintln(stderr, "no drawable routes")
	}
	return 0
}

func newResolver(opts options, cfg config.Config, log zerolog.Logger) (*trip.Resolver, error) {
	if !opts.live {
		return trip.NewResolver(trip.ResolverConfig{Logger: log})
	}

	provider, err := providers.New(cfg, nil, log)
	if err != nil {
		return nil, err
	}

	return trip.NewResolver(trip.ResolverConfig{
		Strategy: trip.StrategyLive,
		Lookup:   trip.NewProviderLookup(provider, nil, cfg.Routes.Region),
		Logger:   log,
	})
}
