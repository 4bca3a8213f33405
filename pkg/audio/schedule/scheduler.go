package schedule

import (
	"errors"
	"fmt"
	"sync"

	"github.com/YingxuanHu/pixelholo-frontend/pkg/audio"
)

// Default envelope and timing constants, in seconds.
const (
	// DefaultSafetyMargin absorbs scheduling jitter so a clip is never
	// placed in the past relative to the playback clock.
	DefaultSafetyMargin = 0.050

	// DefaultAttack and DefaultRelease are the linear fade durations that
	// mask waveform discontinuities at clip boundaries.
	DefaultAttack  = 0.010
	DefaultRelease = 0.010

	// DefaultOverlap is the deliberate crossfade between consecutive clips:
	// each clip starts this much before the previous one ends so the fades
	// overlap instead of leaving a silent gap.
	DefaultOverlap = 0.008
)

// ErrOutOfOrder reports a clip whose index does not strictly increase over
// the previously scheduled clip. The transport guarantees in-order delivery;
// a violation means the stream is corrupt and the session must fail rather
// than play audio out of sequence.
var ErrOutOfOrder = errors.New("schedule: chunk index out of order")

// ErrEmptyClip reports a clip with no playable samples. Such clips are
// dropped by the caller; scheduler state does not advance.
var ErrEmptyClip = errors.New("schedule: clip has zero duration")

// Placement is the concrete playback decision for one clip.
type Placement struct {
	// StartAt is the playback start time in the scheduler's clock domain.
	StartAt float64

	// Duration is the full clip length in seconds.
	Duration float64

	// FadeIn and FadeOut are the linear envelope ramp durations applied at
	// the head and tail of the clip.
	FadeIn  float64
	FadeOut float64
}

// End returns the clock time at which the clip finishes playing.
func (p Placement) End() float64 { return p.StartAt + p.Duration }

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithSafetyMargin overrides the jitter margin added to the clock value when
// the schedule has fallen behind realtime.
func WithSafetyMargin(seconds float64) Option {
	return func(s *Scheduler) {
		if seconds >= 0 {
			s.safetyMargin = seconds
		}
	}
}

// WithEnvelope overrides the attack and release fade durations.
func WithEnvelope(attack, release float64) Option {
	return func(s *Scheduler) {
		if attack >= 0 {
			s.attack = attack
		}
		if release >= 0 {
			s.release = release
		}
	}
}

// WithOverlap overrides the crossfade overlap between consecutive clips.
func WithOverlap(seconds float64) Option {
	return func(s *Scheduler) {
		if seconds >= 0 {
			s.overlap = seconds
		}
	}
}

// Scheduler owns the playback cursor of one stream session. It converts each
// arriving clip into a [Placement] that is gapless with respect to the
// previous clip, regardless of how irregularly clips arrive off the network.
//
// The cursor (next start time) is monotonically non-decreasing for the life
// of a session and only moves forward on successful scheduling — a rejected
// clip never perturbs the placement of the clips after it.
//
// All methods are safe for concurrent use, though a session drives the
// scheduler from a single pump goroutine.
type Scheduler struct {
	clock Clock

	safetyMargin float64
	attack       float64
	release      float64
	overlap      float64

	mu        sync.Mutex
	next      float64 // earliest start time for the next clip
	lastIndex int64   // index of the last scheduled clip, -1 before the first
}

// New creates a Scheduler reading time from clock.
func New(clock Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:        clock,
		safetyMargin: DefaultSafetyMargin,
		attack:       DefaultAttack,
		release:      DefaultRelease,
		overlap:      DefaultOverlap,
		lastIndex:    -1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Overlap returns the configured crossfade overlap in seconds.
func (s *Scheduler) Overlap() float64 { return s.overlap }

// Place computes the playback placement for clip and advances the cursor.
//
// The start time is max(clock.Now()+safetyMargin, cursor): the margin keeps
// the first clip (or a clip arriving after a network stall) from being
// scheduled in the past, while the cursor keeps back-to-back clips gapless.
// Fades are capped at a quarter of the clip duration so the head and tail
// envelopes of a very short clip cannot overlap destructively, and the
// crossfade overlap is clamped below half the duration for the same reason.
func (s *Scheduler) Place(clip *audio.Clip) (Placement, error) {
	dur := clip.Duration()
	if dur <= 0 {
		return Placement{}, fmt.Errorf("%w (index %d)", ErrEmptyClip, clip.Index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(clip.Index) <= s.lastIndex {
		return Placement{}, fmt.Errorf("%w: got %d after %d", ErrOutOfOrder, clip.Index, s.lastIndex)
	}

	startAt := s.clock.Now() + s.safetyMargin
	if s.next > startAt {
		startAt = s.next
	}

	overlap := s.overlap
	if overlap > dur/2 {
		overlap = dur / 2
	}

	p := Placement{
		StartAt:  startAt,
		Duration: dur,
		FadeIn:   min(s.attack, dur/4),
		FadeOut:  min(s.release, dur/4),
	}

	s.next = startAt + dur - overlap
	s.lastIndex = int64(clip.Index)
	return p, nil
}

// Cursor returns the earliest start time the next clip can be given.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Reset rewinds the cursor to the current clock value and forgets the index
// history. Called when a new session takes ownership of the playback clock.
func (s *Scheduler) Reset() {
	s.ResetTo(s.clock.Now())
}

// ResetTo rewinds the cursor to t (typically zero at teardown) and forgets
// the index history.
func (s *Scheduler) ResetTo(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = t
	s.lastIndex = -1
}
