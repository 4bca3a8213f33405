package schedule

import (
	"sync"
	"testing"

	"github.com/YingxuanHu/pixelholo-frontend/pkg/audio"
)

// frameCollector accumulates rendered output frames.
type frameCollector struct {
	mu      sync.Mutex
	samples []int16
}

func (f *frameCollector) write(frame []int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, frame...)
}

func (f *frameCollector) all() []int16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int16(nil), f.samples...)
}

func TestPlayer_RendersScheduledClip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	col := &frameCollector{}
	p, err := NewPlayer(clock, 1000, col.write)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	defer p.Close()

	clip := &audio.Clip{Index: 0, PCM: constantPCM(100, 1000), SampleRate: 1000}
	// Start at t=0.1 (sample 100) with no fades.
	p.Play(clip, Placement{StartAt: 0.1, Duration: 0.1})

	// Drive the timeline past the clip's end.
	p.emitUntil(300)

	got := col.all()
	if len(got) != 300 {
		t.Fatalf("rendered %d samples, want 300", len(got))
	}
	for i := 0; i < 100; i++ {
		if got[i] != 0 {
			t.Fatalf("sample %d = %d, want leading silence", i, got[i])
		}
	}
	if got[150] != 1000 {
		t.Errorf("sample 150 = %d, want 1000", got[150])
	}
	for i := 200; i < 300; i++ {
		if got[i] != 0 {
			t.Fatalf("sample %d = %d, want trailing silence", i, got[i])
		}
	}
}

func TestPlayer_MixesOverlappingClips(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	col := &frameCollector{}
	p, err := NewPlayer(clock, 1000, col.write)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	defer p.Close()

	a := &audio.Clip{Index: 0, PCM: constantPCM(100, 1000), SampleRate: 1000}
	b := &audio.Clip{Index: 1, PCM: constantPCM(100, 500), SampleRate: 1000}
	p.Play(a, Placement{StartAt: 0, Duration: 0.1})
	// b starts 50 samples before a ends: the overlap region sums.
	p.Play(b, Placement{StartAt: 0.05, Duration: 0.1})

	p.emitUntil(150)
	got := col.all()

	if got[25] != 1000 {
		t.Errorf("sample 25 = %d, want 1000 (only a)", got[25])
	}
	if got[75] != 1500 {
		t.Errorf("sample 75 = %d, want 1500 (a + b mixed)", got[75])
	}
	if got[125] != 500 {
		t.Errorf("sample 125 = %d, want 500 (only b)", got[125])
	}
}

func TestPlayer_SaturatesOnClip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	col := &frameCollector{}
	p, _ := NewPlayer(clock, 1000, col.write)
	defer p.Close()

	loud := &audio.Clip{Index: 0, PCM: constantPCM(10, 30000), SampleRate: 1000}
	p.Play(loud, Placement{StartAt: 0, Duration: 0.01})
	loud2 := &audio.Clip{Index: 1, PCM: constantPCM(10, 30000), SampleRate: 1000}
	p.Play(loud2, Placement{StartAt: 0, Duration: 0.01})

	p.emitUntil(10)
	got := col.all()
	for i, s := range got {
		if s != 32767 {
			t.Fatalf("sample %d = %d, want saturated 32767", i, s)
		}
	}
}

func TestPlayer_AppliesEnvelope(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	col := &frameCollector{}
	p, _ := NewPlayer(clock, 1000, col.write)
	defer p.Close()

	clip := &audio.Clip{Index: 0, PCM: constantPCM(100, 10000), SampleRate: 1000}
	p.Play(clip, Placement{StartAt: 0, Duration: 0.1, FadeIn: 0.010, FadeOut: 0.010})

	p.emitUntil(100)
	got := col.all()
	if got[0] != 0 {
		t.Errorf("sample 0 = %d, want faded-in 0", got[0])
	}
	if got[50] != 10000 {
		t.Errorf("sample 50 = %d, want full volume", got[50])
	}
	if got[99] >= 10000 {
		t.Errorf("sample 99 = %d, want faded-out", got[99])
	}

	// The source clip is untouched; the envelope shapes a copy.
	if clip.PCM[0] != 10000 {
		t.Errorf("clip.PCM[0] = %d, want unmodified 10000", clip.PCM[0])
	}
}

func TestPlayer_DropsFullyPastClip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	col := &frameCollector{}
	p, _ := NewPlayer(clock, 1000, col.write)
	defer p.Close()

	// Advance the timeline first, then schedule wholly behind it.
	p.emitUntil(200)
	late := &audio.Clip{Index: 0, PCM: constantPCM(50, 1000), SampleRate: 1000}
	p.Play(late, Placement{StartAt: 0.05, Duration: 0.05})

	p.emitUntil(250)
	got := col.all()
	for i := 200; i < 250; i++ {
		if got[i] != 0 {
			t.Fatalf("sample %d = %d, want silence (late clip dropped)", i, got[i])
		}
	}
}

func TestPlayer_ResumeSuspendClose(t *testing.T) {
	t.Parallel()

	p, err := NewPlayer(NewMonotonicClock(), 48000, nil)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	// Resuming twice is a no-op.
	if err := p.Resume(); err != nil {
		t.Fatalf("second Resume: %v", err)
	}

	p.Suspend()
	p.Suspend() // idempotent

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume after Suspend: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := p.Resume(); err == nil {
		t.Fatal("Resume after Close succeeded")
	}
}

func TestNewPlayer_RejectsInvalidRate(t *testing.T) {
	t.Parallel()

	if _, err := NewPlayer(&fakeClock{}, 0, nil); err == nil {
		t.Fatal("NewPlayer accepted rate 0")
	}
}
