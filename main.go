// Command pitchseg writes foreground masks of players and ball for broadcast
// football footage.
//
// Every -stream is either a directory of "frame-N" images, a single image or
// a video file. Streams are segmented concurrently, each with its own
// temporal background estimate, and masks are written as
// <output-dir>/<stream>/mask-N.png.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-pitchseg/config"
	"github.com/nvr-ai/go-pitchseg/controller"
	"github.com/nvr-ai/go-pitchseg/logger"
	"github.com/nvr-ai/go-pitchseg/profiler"
	"github.com/nvr-ai/go-pitchseg/segmentation"
)

// options holds the parsed command line.
type options struct {
	configPath    string
	outputDir     string
	logLevel      string
	logFormat     string
	accumSize     int
	bins          int
	smoothSize    int
	morphology    bool
	sceneDistance float64
	maxFrames     int
	profile       bool
	dryRun        bool
	streams       streamFlags
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("pitchseg", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML settings file")
	fs.StringVar(&opts.outputDir, "output-dir", "", "Output directory for masks (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json (overrides config)")
	fs.IntVar(&opts.accumSize, "accum-size", 0, "Number of frames averaged into the background (overrides config)")
	fs.IntVar(&opts.bins, "bins", 0, "Histogram bins (overrides config)")
	fs.IntVar(&opts.smoothSize, "smooth-size", 0, "Gaussian kernel size, -1 disables smoothing (overrides config)")
	fs.BoolVar(&opts.morphology, "morphology", false, "Close small gaps in the masks")
	fs.Float64Var(&opts.sceneDistance, "scene-distance", 0, "Scene change threshold as a Hellinger distance (0 folds every frame)")
	fs.IntVar(&opts.maxFrames, "max-frames", 0, "Stop each stream after this many frames (0 means all)")
	fs.BoolVar(&opts.profile, "profile", false, "Log per-stage timings when done")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Segment without writing masks")
	fs.Var(&opts.streams, "stream", "Input stream as [id=]path; repeatable")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	for _, arg := range fs.Args() {
		if err := opts.streams.Set(arg); err != nil {
			return options{}, err
		}
	}
	if len(opts.streams) == 0 {
		return options{}, errors.New("at least one -stream is required")
	}
	return opts, nil
}

// settings loads the config file, if any, and applies the flag overrides.
func (o options) settings() (config.Settings, error) {
	settings := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Settings{}, err
		}
		settings = loaded
	}

	if o.outputDir != "" {
		settings.Output.Directory = o.outputDir
	}
	if o.dryRun {
		settings.Output.WriteMasks = false
	}
	if o.logLevel != "" {
		settings.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		settings.Logging.Format = logger.Format(o.logFormat)
	}
	if o.accumSize != 0 {
		settings.Segmentation.AccumSize = o.accumSize
	}
	if o.bins != 0 {
		settings.Segmentation.Bins = o.bins
	}
	if o.smoothSize != 0 {
		settings.Segmentation.SmoothSize = o.smoothSize
	}
	if o.morphology {
		settings.Segmentation.ApplyMorphologic = true
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		console := logger.NewConsole(zerolog.InfoLevel)
		console.Fatal().Err(err).Msg("invalid arguments")
	}

	settings, err := opts.settings()
	if err != nil {
		console := logger.NewConsole(zerolog.InfoLevel)
		console.Fatal().Err(err).Msg("invalid settings")
	}

	log, err := logger.New(settings.Logging, os.Stderr)
	if err != nil {
		console := logger.NewConsole(zerolog.InfoLevel)
		console.Fatal().Err(err).Msg("invalid logging settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, settings, log); err != nil {
		log.Error().Err(err).Msg("segmentation failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, settings config.Settings, log zerolog.Logger) error {
	size, err := settings.Frame.Size()
	if err != nil {
		return err
	}

	segOpts := []segmentation.Option{segmentation.WithLogger(log)}
	if opts.sceneDistance > 0 {
		segOpts = append(segOpts, segmentation.WithContinuityPolicy(
			segmentation.DistanceThreshold{MaxDistance: opts.sceneDistance}))
	}
	var stages *profiler.StageProfiler
	if opts.profile {
		stages = profiler.NewStageProfiler(profiler.DefaultMaxSamples)
		segOpts = append(segOpts, segmentation.WithStageObserver(stages))
	}

	ctrl := controller.New(controller.NewSegmenterFactory(size, settings.Segmentation, segOpts...), log)
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to release segmenters")
		}
	}()

	log.Info().
		Str("frame_size", size.String()).
		Int("streams", len(opts.streams)).
		Str("output", settings.Output.Directory).
		Bool("write_masks", settings.Output.WriteMasks).
		Msg("starting segmentation")

	g, ctx := errgroup.WithContext(ctx)
	for _, in := range opts.streams {
		w := &streamWorker{
			input:     in,
			size:      size,
			ctrl:      ctrl,
			maxFrames: opts.maxFrames,
			log:       log.With().Str("stream", in.ID).Logger(),
		}
		if settings.Output.WriteMasks {
			w.outputDir = filepath.Join(settings.Output.Directory, in.ID)
		}
		g.Go(func() error {
			return w.run(ctx)
		})
	}
	err = g.Wait()

	if stages != nil {
		stages.Report(log)
	}
	return err
}
