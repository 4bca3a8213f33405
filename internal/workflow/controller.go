// Package workflow sequences the voice-cloning panel stages. A profile moves
// through upload, preprocessing, training, and finally synthesis; each stage
// is gated on what the service's profile inventory says the previous stages
// have produced. The controller holds no hidden globals: callers pass a
// [State] in and get the updated one back, so the sequencing is testable
// without any rendering surface.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/YingxuanHu/pixelholo-frontend/internal/observe"
	"github.com/YingxuanHu/pixelholo-frontend/internal/session"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/streamio"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/voiceclone"
)

// Stage is one step of the panel workflow.
type Stage int

const (
	// StageProfile means the profile needs raw audio before anything else
	// can run.
	StageProfile Stage = iota

	// StagePreprocess means raw samples exist but have not been segmented.
	StagePreprocess

	// StageTrain means processed audio exists but no checkpoint does.
	StageTrain

	// StageGenerate means a trained checkpoint is available for synthesis.
	StageGenerate
)

// String returns the lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageProfile:
		return "profile"
	case StagePreprocess:
		return "preprocess"
	case StageTrain:
		return "train"
	case StageGenerate:
		return "generate"
	default:
		return "unknown"
	}
}

// ErrStageLocked reports an action attempted before its gating stage was
// reached, e.g. training a profile with no processed audio.
var ErrStageLocked = errors.New("workflow: stage not yet reachable for this profile")

// State is the explicit workflow position for one profile. It is a value:
// controller methods return an updated copy rather than mutating shared
// state.
type State struct {
	// Profile is the inventory entry the state was derived from.
	Profile voiceclone.Profile

	// Stage is the furthest stage the profile's inventory unlocks.
	Stage Stage
}

// Reachable reports whether target may run given the profile's inventory.
// Earlier stages stay reachable after later ones unlock, so a user can
// re-upload or re-train at any point.
func (s State) Reachable(target Stage) bool {
	return target <= s.Stage
}

// stageFor derives the furthest unlocked stage from the inventory counters.
func stageFor(p voiceclone.Profile) Stage {
	switch {
	case !p.HasData || p.RawFiles == 0:
		return StageProfile
	case p.ProcessedWavs == 0:
		return StagePreprocess
	case p.BestCheckpoint == "" && p.LatestCheckpoint == "":
		return StageTrain
	default:
		return StageGenerate
	}
}

// checkpointFor picks the checkpoint a synthesis request should pin: the
// selected best when the server has chosen one, otherwise the latest.
func checkpointFor(p voiceclone.Profile) string {
	if p.BestCheckpoint != "" {
		return p.BestCheckpoint
	}
	return p.LatestCheckpoint
}

// LogSink receives progress lines from preprocessing and training streams.
type LogSink func(line string)

// Option configures a Controller.
type Option func(*Controller)

// WithLogSink sets the destination for progress lines. Defaults to discard.
func WithLogSink(sink LogSink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.logs = sink
		}
	}
}

// WithMetrics sets the OTel instrument set. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(obs *observe.Metrics) Option {
	return func(c *Controller) {
		if obs != nil {
			c.obs = obs
		}
	}
}

// Controller drives the panel workflow against the inference service. It
// composes the service client for the batch stages and the session manager
// for real-time synthesis.
type Controller struct {
	client   *voiceclone.Client
	sessions *session.Manager
	logs     LogSink
	obs      *observe.Metrics
}

// NewController creates a Controller using client for batch operations and
// sessions for synthesis.
func NewController(client *voiceclone.Client, sessions *session.Manager, opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		sessions: sessions,
		logs:     func(string) {},
	}
	for _, o := range opts {
		o(c)
	}
	if c.obs == nil {
		c.obs = observe.DefaultMetrics()
	}
	return c
}

// Profiles lists the service's profile inventory.
func (c *Controller) Profiles(ctx context.Context) ([]voiceclone.Profile, error) {
	return c.client.Profiles(ctx)
}

// Load fetches the inventory entry for name and derives its workflow state.
// A name absent from the inventory yields a fresh StageProfile state, since
// the server creates profiles implicitly on first upload.
func (c *Controller) Load(ctx context.Context, name string) (State, error) {
	profiles, err := c.client.Profiles(ctx)
	if err != nil {
		return State{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return State{Profile: p, Stage: stageFor(p)}, nil
		}
	}
	return State{Profile: voiceclone.Profile{Name: name}, Stage: StageProfile}, nil
}

// refresh re-derives the state from the service after a stage mutated the
// profile's inventory. The stale state is returned on error so callers keep
// a usable position.
func (c *Controller) refresh(ctx context.Context, state State) (State, error) {
	next, err := c.Load(ctx, state.Profile.Name)
	if err != nil {
		return state, err
	}
	return next, nil
}

// Upload sends one raw audio sample from path and returns the refreshed
// state. Uploading is always permitted.
func (c *Controller) Upload(ctx context.Context, state State, path string) (State, error) {
	f, err := os.Open(path)
	if err != nil {
		return state, fmt.Errorf("workflow: open sample: %w", err)
	}
	defer f.Close()

	start := time.Now()
	result, err := c.client.Upload(ctx, state.Profile.Name, path, f)
	if err != nil {
		return state, err
	}
	c.obs.UploadDuration.Record(ctx, time.Since(start).Seconds())

	c.logs(fmt.Sprintf("Uploaded %s -> %s", result.Filename, result.SavedPath))
	return c.refresh(ctx, state)
}

// Preprocess runs audio preprocessing for the profile, forwarding each
// progress line to the log sink, and returns the refreshed state. Requires
// uploaded raw audio. filename optionally limits preprocessing to one sample.
func (c *Controller) Preprocess(ctx context.Context, state State, filename string) (State, error) {
	if !state.Reachable(StagePreprocess) {
		return state, ErrStageLocked
	}

	body, err := c.client.Preprocess(ctx, voiceclone.PreprocessRequest{
		Profile:  state.Profile.Name,
		Filename: filename,
	})
	if err != nil {
		return state, err
	}
	if err := c.pumpProgress(body); err != nil {
		return state, fmt.Errorf("workflow: preprocess stream: %w", err)
	}
	return c.refresh(ctx, state)
}

// TrainParams carries the training tunables exposed by the panel. The zero
// value selects the server defaults for every knob.
type TrainParams struct {
	BatchSize        int
	Epochs           int
	MaxLen           int
	AutoSelectEpoch  bool
	AutoTuneProfile  bool
	AutoBuildLexicon bool
	SelectThorough   bool
	SelectUseWER     bool
	EarlyStop        bool
}

// Train runs model training for the profile, forwarding each progress line
// to the log sink, and returns the refreshed state. Requires processed
// audio.
func (c *Controller) Train(ctx context.Context, state State, params TrainParams) (State, error) {
	if !state.Reachable(StageTrain) {
		return state, ErrStageLocked
	}

	body, err := c.client.Train(ctx, voiceclone.TrainRequest{
		Profile:          state.Profile.Name,
		BatchSize:        params.BatchSize,
		Epochs:           params.Epochs,
		MaxLen:           params.MaxLen,
		AutoSelectEpoch:  params.AutoSelectEpoch,
		AutoTuneProfile:  params.AutoTuneProfile,
		AutoBuildLexicon: params.AutoBuildLexicon,
		SelectThorough:   params.SelectThorough,
		SelectUseWER:     params.SelectUseWER,
		EarlyStop:        params.EarlyStop,
	})
	if err != nil {
		return state, err
	}
	if err := c.pumpProgress(body); err != nil {
		return state, fmt.Errorf("workflow: train stream: %w", err)
	}
	return c.refresh(ctx, state)
}

// Generate starts a real-time synthesis session for text in the profile's
// voice, pinned to its selected checkpoint. Requires a trained checkpoint.
// The returned session is streaming; the caller waits on it.
func (c *Controller) Generate(ctx context.Context, state State, text string) (*session.Session, error) {
	if !state.Reachable(StageGenerate) {
		return nil, ErrStageLocked
	}
	return c.sessions.Start(ctx, session.Request{
		Speaker:   state.Profile.Name,
		Text:      text,
		ModelPath: checkpointFor(state.Profile),
	})
}

// CancelGeneration aborts any in-flight synthesis session.
func (c *Controller) CancelGeneration() {
	c.sessions.Cancel()
}

// Close tears down the synthesis engine. A later Generate starts from a
// clean playback clock.
func (c *Controller) Close() {
	c.sessions.Stop()
}

// pumpProgress drains a chunked progress stream line by line into the log
// sink. The stream ending cleanly is not an error.
func (c *Controller) pumpProgress(body io.ReadCloser) error {
	reader := streamio.NewLineReader(body)
	defer reader.Close()

	for {
		line, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		c.logs(line)
	}
}
