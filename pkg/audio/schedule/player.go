package schedule

import (
	"errors"
	"sync"
	"time"

	"github.com/YingxuanHu/pixelholo-frontend/pkg/audio"
)

// frameInterval is the cadence at which the player renders timeline samples
// to its output callback.
const frameInterval = 20 * time.Millisecond

// Player renders scheduled clips into a continuous mono PCM stream. Clips are
// mixed additively into a sample timeline keyed to the playback clock, so the
// crossfade region of two overlapping clips sums their faded tails and heads
// exactly as the scheduler intended.
//
// A Player starts suspended; call [Player.Resume] before scheduling against
// it. All exported methods are safe for concurrent use.
type Player struct {
	clock  Clock
	rate   int
	output func([]int16) // receives rendered frames in playback order

	mu         sync.Mutex
	buf        []int32 // mix accumulator; int32 headroom avoids wrap on overlap
	baseSample int64   // absolute sample index of buf[0] on the clock timeline
	running    bool
	closed     bool
	stop       chan struct{}
	wg         sync.WaitGroup
}

// NewPlayer creates a suspended Player that mixes at sampleRate Hz and hands
// rendered frames to output. output may be nil when playback is render-only
// (tests, dry runs); the timeline still advances.
func NewPlayer(clock Clock, sampleRate int, output func([]int16)) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("schedule: player sample rate must be positive")
	}
	return &Player{
		clock:  clock,
		rate:   sampleRate,
		output: output,
	}, nil
}

// Play mixes clip into the timeline at its placement, applying the fade
// envelope first. Samples that fall before the already-rendered portion of
// the timeline are dropped silently; the scheduler's safety margin makes
// that case unreachable in normal operation.
func (p *Player) Play(clip *audio.Clip, placement Placement) {
	shaped := make([]int16, len(clip.PCM))
	copy(shaped, clip.PCM)
	ApplyEnvelope(shaped, p.rate, placement.FadeIn, placement.FadeOut)

	start := int64(placement.StartAt * float64(p.rate))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	offset := start - p.baseSample
	if offset < 0 {
		if -offset >= int64(len(shaped)) {
			return
		}
		shaped = shaped[-offset:]
		offset = 0
	}

	need := int(offset) + len(shaped)
	if need > len(p.buf) {
		grown := make([]int32, need)
		copy(grown, p.buf)
		p.buf = grown
	}
	for i, s := range shaped {
		p.buf[int(offset)+i] += int32(s)
	}
}

// Resume starts (or restarts) the render loop. Resuming a running player is
// a no-op; resuming a closed player returns an error.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("schedule: player is closed")
	}
	if p.running {
		return nil
	}
	p.running = true
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go p.render(p.stop)
	return nil
}

// Suspend pauses the render loop without discarding the timeline.
func (p *Player) Suspend() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()
	p.wg.Wait()
}

// Close stops rendering and discards the timeline. Close is idempotent.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	wasRunning := p.running
	p.running = false
	if wasRunning {
		close(p.stop)
	}
	p.buf = nil
	p.mu.Unlock()

	if wasRunning {
		p.wg.Wait()
	}
	return nil
}

// render is the background loop that clips the int32 accumulator to int16
// frames and emits everything the clock has passed since the last tick.
func (p *Player) render(stop chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.emitUntil(int64(p.clock.Now() * float64(p.rate)))
		}
	}
}

// emitUntil renders and discards all timeline samples up to (but excluding)
// the absolute sample index target.
func (p *Player) emitUntil(target int64) {
	p.mu.Lock()
	n := int(target - p.baseSample)
	if n <= 0 || p.closed {
		p.mu.Unlock()
		return
	}

	frame := make([]int16, n)
	avail := min(n, len(p.buf))
	for i := 0; i < avail; i++ {
		frame[i] = clipSample(p.buf[i])
	}
	// Samples beyond the accumulator are silence (already zero).

	if avail > 0 {
		p.buf = p.buf[avail:]
	}
	p.baseSample = target
	out := p.output
	p.mu.Unlock()

	if out != nil {
		out(frame)
	}
}

// clipSample saturates a mixed int32 sample into the int16 range.
func clipSample(s int32) int16 {
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}
