// Command chainrun reads JSON values line by line from stdin, runs each
// through a pipeline defined in YAML and writes the results to stdout as
// JSON lines.
//
//	echo '1
//	2
//	3' | chainrun --pipeline pipelines.yml --name squares
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/chainkit/catalog"
	"github.com/kbukum/chainkit/chain"
	"github.com/kbukum/chainkit/config"
	"github.com/kbukum/chainkit/logger"
	"github.com/kbukum/chainkit/observability"
	"github.com/kbukum/chainkit/stream"
	"github.com/kbukum/chainkit/version"
)

const serviceName = "chainrun"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "chainrun: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configFile string
	pipeline   string
	name       string
	hwm        int
	list       bool
	version    bool
}

func parseFlags(args []string, out io.Writer) (*flags, error) {
	var f flags
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&f.configFile, "config", "c", "", "config file (default: searched)")
	fs.StringVarP(&f.pipeline, "pipeline", "p", "", "pipeline definition or catalog file")
	fs.StringVarP(&f.name, "name", "n", "", "pipeline to select from a catalog file")
	fs.IntVar(&f.hwm, "high-water-mark", 0, "output buffer size before the stream pauses")
	fs.BoolVar(&f.list, "list", false, "list the built-in stages and exit")
	fs.BoolVarP(&f.version, "version", "v", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &f, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	f, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if f.version {
		_, err := fmt.Fprintln(stdout, version.GetVersionInfo().String())
		return err
	}
	reg := catalog.Builtins()
	if f.list {
		for _, name := range reg.Names() {
			if _, err := fmt.Fprintln(stdout, name); err != nil {
				return err
			}
		}
		return nil
	}

	var opts []config.LoaderOption
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	cfg, err := config.Load(serviceName, opts...)
	if err != nil {
		return err
	}
	applyFlags(cfg, f)

	// stdout carries data.
	cfg.Logging.Output = "stderr"
	logger.Init(cfg.Logging)
	logger.RegisterDefaults(serviceName, "chain", "stream")
	log := logger.Get(serviceName)

	chainOpts, shutdown, err := setupObservability(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer shutdown()

	def, err := loadDefinition(cfg.Pipeline)
	if err != nil {
		return err
	}
	stage, err := catalog.BuildStage(reg, def, chainOpts.chain...)
	if err != nil {
		return err
	}

	buf := stream.NewBuffer(cfg.Stream.HighWaterMark)
	s, err := stream.New(stage, buf, chainOpts.stream...)
	if err != nil {
		return err
	}
	log.Info("pipeline ready", logger.Fields(
		"pipeline", def.Name,
		"stages", len(def.Stages),
		"high_water_mark", cfg.Stream.HighWaterMark,
	))

	// A failing writer cancels ctx, which unblocks a stream paused on the
	// buffer.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeJSONLines(ctx, buf, stdout)
	})

	feedErr := stream.Feed(ctx, readJSONLines(stdin), s)
	if feedErr != nil {
		// The writer only returns once the buffer ends.
		_ = buf.End(ctx)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if feedErr != nil {
		return feedErr
	}
	log.Debug("input drained")
	return nil
}

func applyFlags(cfg *config.Config, f *flags) {
	if f.pipeline != "" {
		cfg.Pipeline.File = f.pipeline
	}
	if f.name != "" {
		cfg.Pipeline.Name = f.name
	}
	if f.hwm > 0 {
		cfg.Stream.HighWaterMark = f.hwm
	}
}

// loadDefinition reads the configured pipeline. A named pipeline is looked
// up in a catalog file; without a file the pipeline passes values through.
func loadDefinition(pc config.PipelineConfig) (*catalog.Definition, error) {
	switch {
	case pc.File == "":
		return &catalog.Definition{Name: "identity"}, nil
	case pc.Name != "":
		c, err := catalog.LoadCatalog(pc.File)
		if err != nil {
			return nil, err
		}
		return c.Get(pc.Name)
	}
	def, err := catalog.LoadDefinition(pc.File)
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = "pipeline"
	}
	return def, nil
}

type pipelineOptions struct {
	chain  []chain.Option
	stream []stream.Option
}

// setupObservability starts the exporters enabled in cfg and returns the
// matching pipeline options plus a shutdown func.
func setupObservability(ctx context.Context, cfg *config.Config, log *logger.Logger) (pipelineOptions, func(), error) {
	opts := pipelineOptions{
		chain:  []chain.Option{chain.WithLogger(logger.Get("chain"))},
		stream: []stream.Option{stream.WithName(serviceName), stream.WithLogger(logger.Get("stream"))},
	}
	var closers []func(context.Context) error
	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, c := range closers {
			if err := c(sctx); err != nil {
				log.Warn("observability shutdown failed", logger.ErrorFields("shutdown", err))
			}
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, &cfg.Tracing)
		if err != nil {
			return opts, shutdown, err
		}
		closers = append(closers, tp.Shutdown)
		tracer := tp.Tracer(serviceName)
		opts.chain = append(opts.chain, chain.WithTracer(tracer))
		opts.stream = append(opts.stream, stream.WithTracer(tracer))
	}
	if cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, &cfg.Metrics)
		if err != nil {
			return opts, shutdown, err
		}
		closers = append(closers, mp.Shutdown)
		metrics, err := observability.NewMetrics(mp.Meter(serviceName))
		if err != nil {
			return opts, shutdown, err
		}
		opts.chain = append(opts.chain, chain.WithMetrics(metrics))
		opts.stream = append(opts.stream, stream.WithMetrics(metrics))
	}
	return opts, shutdown, nil
}
