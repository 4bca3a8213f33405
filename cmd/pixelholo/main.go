// Command pixelholo is the control panel for the pixelholo voice-cloning
// service. It drives the full workflow — sample upload, preprocessing,
// training, and real-time streaming synthesis — from the terminal.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/YingxuanHu/pixelholo-frontend/internal/config"
	"github.com/YingxuanHu/pixelholo-frontend/internal/health"
	"github.com/YingxuanHu/pixelholo-frontend/internal/observe"
	"github.com/YingxuanHu/pixelholo-frontend/internal/session"
	"github.com/YingxuanHu/pixelholo-frontend/internal/workflow"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/voiceclone"
)

const usage = `Usage: pixelholo [-config path] <command> [flags]

Commands:
  profiles                      list voice profiles and their workflow stage
  upload     -profile -file     upload a raw audio sample
  preprocess -profile [-file]   segment uploaded audio into training clips
  train      -profile [flags]   train a voice model (streams progress)
  generate   -profile -text     synthesise speech in real time
  set-url    <base-url>         persist the service address preference
`

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; real environment wins over file values.
	_ = godotenv.Load()

	configPath := flag.String("config", config.DefaultPath(), "path to the YAML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixelholo: %v\n", err)
		return 1
	}
	if url := os.Getenv("PIXELHOLO_BASE_URL"); url != "" {
		cfg.Service.BaseURL = url
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "pixelholo: %v\n", err)
		return 1
	}

	slog.SetDefault(newLogger(cfg.Panel.LogLevel))

	command, args := flag.Arg(0), flag.Args()[1:]

	// set-url only touches the config file, no service connection needed.
	if command == "set-url" {
		return runSetURL(*configPath, cfg, args)
	}

	client, err := voiceclone.New(cfg.Service.BaseURL, clientOptions(cfg)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixelholo: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("metrics init failed", "err", err)
		return 1
	}

	// The ops server (metrics + health probes) runs beside the command for
	// as long as the command does.
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Panel.OpsAddr != "" {
		startOpsServer(ctx, g, cfg.Panel.OpsAddr, client, metrics)
	}

	code := dispatch(ctx, command, args, cfg, client, metrics)

	stop()
	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("ops server error", "err", err)
	}
	return code
}

// dispatch runs one panel subcommand to completion.
func dispatch(ctx context.Context, command string, args []string, cfg *config.Config, client *voiceclone.Client, metrics *observe.Metrics) int {
	newController := func(transport session.Transport, opts ...session.Option) (*workflow.Controller, *session.Manager) {
		opts = append(opts, session.WithMetrics(metrics))
		mc := managerConfig(cfg)
		mc.Transport = transport
		manager := session.NewManager(client, mc, opts...)
		ctrl := workflow.NewController(client, manager,
			workflow.WithLogSink(func(line string) { fmt.Println(line) }),
			workflow.WithMetrics(metrics),
		)
		return ctrl, manager
	}

	var err error
	switch command {
	case "profiles", "upload", "preprocess", "train":
		ctrl, manager := newController(session.TransportHTTP)
		defer manager.Stop()
		switch command {
		case "profiles":
			err = runProfiles(ctx, ctrl)
		case "upload":
			err = runUpload(ctx, ctrl, args)
		case "preprocess":
			err = runPreprocess(ctx, ctrl, args)
		case "train":
			err = runTrain(ctx, ctrl, cfg, args)
		}
	case "generate":
		err = runGenerate(ctx, newController, args)
	default:
		fmt.Fprintf(os.Stderr, "pixelholo: unknown command %q\n", command)
		flag.Usage()
		return 2
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "pixelholo: %v\n", err)
		return 1
	}
	return 0
}

// ── Subcommands ───────────────────────────────────────────────────────────────

func runProfiles(ctx context.Context, ctrl *workflow.Controller) error {
	profiles, err := ctrl.Profiles(ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("no profiles yet — upload a sample to create one")
		return nil
	}
	fmt.Printf("%-20s %5s %5s %6s  %-10s %s\n",
		"PROFILE", "RAW", "WAVS", "MODEL", "STAGE", "BEST CHECKPOINT")
	for _, p := range profiles {
		state, err := ctrl.Load(ctx, p.Name)
		if err != nil {
			return err
		}
		trained := "no"
		if p.BestCheckpoint != "" || p.LatestCheckpoint != "" {
			trained = "yes"
		}
		fmt.Printf("%-20s %5d %5d %6s  %-10s %s\n",
			p.Name, p.RawFiles, p.ProcessedWavs, trained, state.Stage, p.BestCheckpoint)
	}
	return nil
}

func runUpload(ctx context.Context, ctrl *workflow.Controller, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	profile := fs.String("profile", "", "voice profile name")
	file := fs.String("file", "", "path to the audio sample")
	fs.Parse(args)
	if *profile == "" || *file == "" {
		return errors.New("upload: -profile and -file are required")
	}

	state, err := ctrl.Load(ctx, *profile)
	if err != nil {
		return err
	}
	state, err = ctrl.Upload(ctx, state, *file)
	if err != nil {
		return err
	}
	fmt.Printf("profile %s now at stage %s (%d raw files)\n",
		state.Profile.Name, state.Stage, state.Profile.RawFiles)
	return nil
}

func runPreprocess(ctx context.Context, ctrl *workflow.Controller, args []string) error {
	fs := flag.NewFlagSet("preprocess", flag.ExitOnError)
	profile := fs.String("profile", "", "voice profile name")
	file := fs.String("file", "", "optional single sample to preprocess")
	fs.Parse(args)
	if *profile == "" {
		return errors.New("preprocess: -profile is required")
	}

	state, err := ctrl.Load(ctx, *profile)
	if err != nil {
		return err
	}
	state, err = ctrl.Preprocess(ctx, state, *file)
	if err != nil {
		return err
	}
	fmt.Printf("profile %s now at stage %s (%d processed wavs)\n",
		state.Profile.Name, state.Stage, state.Profile.ProcessedWavs)
	return nil
}

func runTrain(ctx context.Context, ctrl *workflow.Controller, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	profile := fs.String("profile", "", "voice profile name")
	batchSize := fs.Int("batch-size", cfg.Train.BatchSize, "training batch size (0 = server default)")
	epochs := fs.Int("epochs", cfg.Train.Epochs, "training epochs (0 = server default)")
	maxLen := fs.Int("max-len", cfg.Train.MaxLen, "maximum clip length (0 = server default)")
	autoSelect := fs.Bool("auto-select-epoch", cfg.Train.AutoSelectEpoch, "let the server pick the best epoch")
	autoTune := fs.Bool("auto-tune-profile", cfg.Train.AutoTuneProfile, "auto-tune profile hyperparameters")
	autoLexicon := fs.Bool("auto-build-lexicon", cfg.Train.AutoBuildLexicon, "build a pronunciation lexicon")
	thorough := fs.Bool("select-thorough", cfg.Train.SelectThorough, "thorough checkpoint selection")
	useWER := fs.Bool("select-use-wer", cfg.Train.SelectUseWER, "use word error rate during selection")
	earlyStop := fs.Bool("early-stop", cfg.Train.EarlyStop, "stop early when the model converges")
	fs.Parse(args)
	if *profile == "" {
		return errors.New("train: -profile is required")
	}

	state, err := ctrl.Load(ctx, *profile)
	if err != nil {
		return err
	}
	state, err = ctrl.Train(ctx, state, workflow.TrainParams{
		BatchSize:        *batchSize,
		Epochs:           *epochs,
		MaxLen:           *maxLen,
		AutoSelectEpoch:  *autoSelect,
		AutoTuneProfile:  *autoTune,
		AutoBuildLexicon: *autoLexicon,
		SelectThorough:   *thorough,
		SelectUseWER:     *useWER,
		EarlyStop:        *earlyStop,
	})
	if err != nil {
		return err
	}
	fmt.Printf("profile %s now at stage %s (best checkpoint: %s)\n",
		state.Profile.Name, state.Stage, state.Profile.BestCheckpoint)
	return nil
}

func runGenerate(ctx context.Context, newController func(session.Transport, ...session.Option) (*workflow.Controller, *session.Manager), args []string) (err error) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	profile := fs.String("profile", "", "voice profile name")
	text := fs.String("text", "", "text to synthesise")
	out := fs.String("out", "", "optional file receiving raw mono 16-bit PCM")
	ws := fs.Bool("ws", false, "stream over WebSocket instead of chunked HTTP")
	fs.Parse(args)
	if *profile == "" || *text == "" {
		return errors.New("generate: -profile and -text are required")
	}

	var sessionOpts []session.Option
	if *out != "" {
		sink, err := newPCMSink(*out)
		if err != nil {
			return err
		}
		// Runs after manager.Stop has drained the playback engine.
		defer func() {
			if cerr := sink.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		sessionOpts = append(sessionOpts, session.WithOutput(sink.Write))
	}

	transport := session.TransportHTTP
	if *ws {
		transport = session.TransportWebSocket
	}
	ctrl, manager := newController(transport, sessionOpts...)
	defer manager.Stop()

	state, err := ctrl.Load(ctx, *profile)
	if err != nil {
		return err
	}

	s, err := ctrl.Generate(ctx, state, *text)
	if err != nil {
		return err
	}

	// Ctrl+C cancels the stream without reporting a failure.
	go func() {
		<-ctx.Done()
		s.Cancel()
	}()

	status := s.Wait()
	stats := s.Stats()

	fmt.Printf("session %s: %s\n", stats.ID, status)
	if stats.HasFirstAudio {
		fmt.Printf("  time to first audio: %d ms\n", stats.TimeToFirstAudio.Milliseconds())
	}
	source := "measured"
	if stats.ServerReported {
		source = "server-reported"
	}
	fmt.Printf("  total: %d ms (%s), %d chunks scheduled\n", stats.TotalMs, source, len(stats.Chunks))

	if status == session.StatusFailed {
		return s.Err()
	}
	return nil
}

func runSetURL(path string, cfg *config.Config, args []string) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "pixelholo: set-url requires exactly one argument")
		return 2
	}
	cfg.Service.BaseURL = args[0]
	if err := config.Save(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "pixelholo: %v\n", err)
		return 1
	}
	fmt.Printf("service address saved: %s\n", cfg.Service.BaseURL)
	return 0
}

// ── Wiring helpers ────────────────────────────────────────────────────────────

func clientOptions(cfg *config.Config) []voiceclone.Option {
	var opts []voiceclone.Option
	if cfg.Service.TimeoutSeconds > 0 {
		opts = append(opts, voiceclone.WithTimeout(time.Duration(cfg.Service.TimeoutSeconds)*time.Second))
	}
	return opts
}

func managerConfig(cfg *config.Config) session.Config {
	return session.Config{
		SampleRate:   cfg.Audio.SampleRate,
		SafetyMargin: time.Duration(cfg.Audio.SafetyMarginMs) * time.Millisecond,
		Fade:         time.Duration(cfg.Audio.FadeMs) * time.Millisecond,
		Overlap:      time.Duration(cfg.Audio.OverlapMs) * time.Millisecond,
	}
}

// startOpsServer serves /metrics and the health probes until ctx is done.
func startOpsServer(ctx context.Context, g *errgroup.Group, addr string, client *voiceclone.Client, metrics *observe.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(health.Checker{
		Name:  "inference-service",
		Check: client.Ping,
	}).Register(mux)

	server := &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(metrics)(mux),
	}

	g.Go(func() error {
		slog.Info("ops server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// pcmSink appends rendered playback frames to a file as little-endian mono
// 16-bit PCM. The first write failure is remembered and reported by Close,
// so a full disk does not silently truncate the capture.
type pcmSink struct {
	f *os.File

	mu       sync.Mutex
	writeErr error
}

func newPCMSink(path string) (*pcmSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &pcmSink{f: f}, nil
}

// Write is the playback output callback.
func (s *pcmSink) Write(frame []int16) {
	buf := make([]byte, 2*len(frame))
	for i, sample := range frame {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(sample))
	}
	if _, err := s.f.Write(buf); err != nil {
		s.mu.Lock()
		if s.writeErr == nil {
			s.writeErr = err
		}
		s.mu.Unlock()
	}
}

func (s *pcmSink) Close() error {
	s.mu.Lock()
	writeErr := s.writeErr
	s.mu.Unlock()
	if err := s.f.Close(); writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return fmt.Errorf("pcm capture: %w", writeErr)
	}
	return nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
