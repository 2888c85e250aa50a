package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/opd-ai/neteq"
	"github.com/opd-ai/neteq/config"
	"github.com/opd-ai/neteq/metrics"
	"github.com/opd-ai/neteq/simnet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type runOptions struct {
	configFile  string
	duration    time.Duration
	jitterMs    float64
	lossRate    float64
	seed        int64
	codec       string
	metricsAddr string
	logLevel    string
	jsonOutput  bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "neteq-sim",
		Short: "Adaptive jitter buffer simulator",
		Long: `neteq-sim drives an adaptive jitter buffer with a synthetic stream
sent over a simulated network and reports how playout coped.

Examples:
  # Ten seconds over a link with 40ms of jitter and 3% loss
  neteq-sim run --duration 10s --jitter 40 --loss 0.03

  # Scenario from a file, PCMU over RTP, metrics on :9100
  neteq-sim run -f lossy.yaml --codec pcmu --metrics-addr :9100

  # Print the default configuration as a starting point
  neteq-sim config > neteq.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "file", "f", "", "configuration file (YAML)")
	flags.DurationVar(&opts.duration, "duration", 0, "simulated sending time")
	flags.Float64Var(&opts.jitterMs, "jitter", 0, "maximum extra network delay in ms")
	flags.Float64Var(&opts.lossRate, "loss", 0, "packet loss probability")
	flags.Int64Var(&opts.seed, "seed", 0, "random seed")
	flags.StringVar(&opts.codec, "codec", "", "payload path: pcm, pcmu, pcma or l16")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (overrides the file)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(configFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(f)
		},
	}
	cmd.Flags().StringVarP(&configFile, "file", "f", "", "configuration file (YAML)")
	return cmd
}

func loadFile(path string) (config.File, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyOverrides copies explicitly set flags over the file's values.
func applyOverrides(cmd *cobra.Command, f *config.File, opts *runOptions) error {
	flags := cmd.Flags()
	if flags.Changed("duration") {
		f.Simulation.Duration = opts.duration
	}
	if flags.Changed("jitter") {
		f.Simulation.JitterMs = opts.jitterMs
	}
	if flags.Changed("loss") {
		f.Simulation.LossRate = opts.lossRate
	}
	if flags.Changed("seed") {
		f.Simulation.Seed = opts.seed
	}
	if flags.Changed("codec") {
		f.Simulation.Codec = opts.codec
	}
	if flags.Changed("metrics-addr") {
		f.Metrics.Address = opts.metricsAddr
	}
	if flags.Changed("log-level") {
		f.Logging.Level = opts.logLevel
	}
	return f.Validate()
}

func runSimulation(cmd *cobra.Command, opts *runOptions) error {
	f, err := loadFile(opts.configFile)
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, &f, opts); err != nil {
		return err
	}
	if err := config.ApplyLogging(logrus.StandardLogger(), f.Logging); err != nil {
		return err
	}

	engine, err := neteq.New(f.Engine)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var server *http.Server
	if f.Metrics.Address != "" {
		server = serveMetrics(engine, f.Metrics)
		defer server.Close()
	}

	report, err := simnet.Run(engine, f.Simulation)
	if err != nil {
		return err
	}
	if err := printReport(cmd.OutOrStdout(), report, opts.jsonOutput); err != nil {
		return err
	}

	if server != nil {
		logrus.WithFields(logrus.Fields{
			"function": "runSimulation",
			"address":  f.Metrics.Address,
		}).Info("Simulation done, serving metrics until interrupted")
		<-ctx.Done()
	}
	return nil
}

func serveMetrics(engine *neteq.Engine, m config.Metrics) *http.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(engine))

	mux := http.NewServeMux()
	mux.Handle(m.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              m.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"address":  m.Address,
				"error":    err.Error(),
			}).Error("Metrics server failed")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "serveMetrics",
		"address":  m.Address,
		"path":     m.Path,
	}).Info("Serving metrics")

	return server
}

func printReport(w io.Writer, report simnet.Report, asJSON bool) error {
	fields := report.Fields()
	fields["state"] = string(report.Statistics.State)
	fields["loss_rate"] = report.Statistics.LossRate

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%-22s %v\n", k, fields[k]); err != nil {
			return err
		}
	}
	return nil
}
