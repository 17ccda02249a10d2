// uid CLI - command-line tool for generating, parsing and serving IDs.
//
// Usage:
//   uid generate [flags]      Generate IDs with a direct minter
//   uid parse <id>            Decompose an ID into its fields
//   uid serve [flags]         Serve IDs over HTTP from a cached generator
//
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sxyafiq/uid"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate", "gen", "g":
		cmdGenerate(os.Args[2:])
	case "parse", "p":
		cmdParse(os.Args[2:])
	case "serve", "s":
		cmdServe(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("uid CLI version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `uid - distributed unique ID generator

Usage:
  uid <command> [flags]

Commands:
  generate    Generate IDs (-n count, -worker id, -config file)
  parse       Decompose an ID (decimal, hex with 0x prefix, or base62 with b62: prefix)
  serve       Serve IDs over HTTP (-addr host:port, -config file)
  version     Print version
  help        Print this help
`)
}

// loadProperties reads the optional config file, falling back to defaults.
func loadProperties(path string) (uid.Properties, error) {
	if path == "" {
		return uid.DefaultProperties(), nil
	}
	return uid.LoadProperties(path)
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	count := fs.Int("n", 1, "number of IDs to generate")
	worker := fs.Int64("worker", 0, "worker id for this run")
	configPath := fs.String("config", "", "configuration file")
	asJSON := fs.Bool("json", false, "emit one JSON object per ID")
	fs.Parse(args)

	props, err := loadProperties(*configPath)
	if err != nil {
		fatal(err)
	}
	if err := props.Validate(); err != nil {
		fatal(err)
	}

	layout := uid.BitLayout{TimeBits: props.TimeBits, WorkerBits: props.WorkerBits, SeqBits: props.SeqBits}
	epoch, err := uid.ParseEpochPoint(props.EpochPoint)
	if err != nil {
		fatal(err)
	}
	minter, err := uid.NewMinter(uid.MinterConfig{
		Layout:             layout,
		Epoch:              epoch,
		WorkerID:           *worker,
		BackwardEnabled:    props.BackwardEnabled,
		MaxBackwardSeconds: props.MaxBackwardSeconds,
	})
	if err != nil {
		fatal(err)
	}

	for i := 0; i < *count; i++ {
		raw, err := minter.NextID()
		if err != nil {
			fatal(err)
		}
		id := uid.ID(raw)
		if *asJSON {
			c := layout.Parse(raw, epoch)
			out, _ := json.Marshal(map[string]interface{}{
				"id":        id,
				"base62":    id.Base62(),
				"worker":    c.WorkerID,
				"sequence":  c.Sequence,
				"timestamp": c.Timestamp.Format(time.RFC3339),
			})
			fmt.Println(string(out))
		} else {
			fmt.Println(id)
		}
	}
}

func cmdParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "parse: missing id argument")
		os.Exit(1)
	}

	props, err := loadProperties(*configPath)
	if err != nil {
		fatal(err)
	}
	layout := uid.BitLayout{TimeBits: props.TimeBits, WorkerBits: props.WorkerBits, SeqBits: props.SeqBits}
	epoch, err := uid.ParseEpochPoint(props.EpochPoint)
	if err != nil {
		fatal(err)
	}

	id, err := parseIDArg(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	c := layout.Parse(id.Int64(), epoch)
	if c == nil {
		fatal(fmt.Errorf("%d is not an id", id.Int64()))
	}

	fmt.Printf("ID:        %d\n", c.ID)
	fmt.Printf("Base62:    %s\n", id.Base62())
	fmt.Printf("Hex:       %s\n", id.Hex())
	fmt.Printf("Delta:     %ds\n", c.DeltaSeconds)
	fmt.Printf("Worker:    %d\n", c.WorkerID)
	fmt.Printf("Sequence:  %d\n", c.Sequence)
	fmt.Printf("Timestamp: %s\n", c.Timestamp.Format(time.RFC3339))
}

// parseIDArg accepts decimal, 0x-prefixed hex and b62:-prefixed base62.
func parseIDArg(s string) (uid.ID, error) {
	switch {
	case len(s) > 4 && s[:4] == "b62:":
		return uid.ParseBase62(s[4:])
	case len(s) > 2 && s[:2] == "0x":
		return uid.ParseHex(s[2:])
	default:
		return uid.ParseString(s)
	}
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	configPath := fs.String("config", "", "configuration file")
	fs.Parse(args)

	logger, err := zap.NewProduction()
	if err != nil {
		fatal(err)
	}
	defer logger.Sync()

	props, err := loadProperties(*configPath)
	if err != nil {
		fatal(err)
	}

	gen, err := props.Build(nil, logger)
	if err != nil {
		if errors.Is(err, uid.ErrGeneratorDisabled) {
			logger.Warn("uid subsystem disabled, nothing to serve")
			return
		}
		fatal(err)
	}
	defer gen.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(uid.NewCollector(gen))

	mux := http.NewServeMux()
	mux.HandleFunc("/id", func(w http.ResponseWriter, r *http.Request) {
		raw, err := gen.NextID()
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]uid.ID{"id": uid.ID(raw)})
	})
	mux.HandleFunc("/parse", func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDArg(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c := gen.Parse(id.Int64())
		if c == nil {
			http.Error(w, "not an id", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Info("serving ids", zap.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "uid: %v\n", err)
	os.Exit(1)
}
