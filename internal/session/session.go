// Package session runs one synthesis request end-to-end: it opens the
// network stream, pumps lines through the record parser, decodes audio
// payloads, feeds clips to the playback scheduler, and tracks latency
// metrics. A [Manager] owns the playback engine and enforces that at most
// one session streams against it at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/YingxuanHu/pixelholo-frontend/internal/observe"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/audio"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/audio/schedule"
	"github.com/YingxuanHu/pixelholo-frontend/pkg/streamio"
)

// ErrInvalidRequest reports a synthesis request missing required fields.
// No network call is made.
var ErrInvalidRequest = errors.New("session: speaker and text must not be empty")

// Transport selects how the synthesis stream is carried.
type Transport int

const (
	// TransportHTTP consumes the chunked NDJSON response of POST /stream.
	TransportHTTP Transport = iota

	// TransportWebSocket consumes the WebSocket variant at /stream/ws.
	TransportWebSocket
)

// Request describes one synthesis call. Speaker and Text are required;
// ModelPath and RefWavPath optionally pin a checkpoint and reference sample.
type Request struct {
	Speaker    string
	Text       string
	ModelPath  string
	RefWavPath string
}

// validate fails fast on missing required fields.
func (r Request) validate() error {
	if strings.TrimSpace(r.Speaker) == "" || strings.TrimSpace(r.Text) == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Session is one in-flight synthesis request. Create sessions through
// [Manager.Start]; a Session's exported methods are safe for concurrent use.
type Session struct {
	id      string
	speaker string
	events  Events
	obs     *observe.Metrics
	decoder *audio.Decoder
	sched   *schedule.Scheduler
	player  *schedule.Player
	source  streamio.LineSource
	cancel  context.CancelFunc
	span    trace.Span
	ctx     context.Context

	mu     sync.Mutex
	status Status
	stats  Metrics
	err    error

	done chan struct{}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the terminal error for a failed session, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns a snapshot of the session's metrics.
func (s *Session) Stats() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Chunks = append([]ChunkReceipt(nil), s.stats.Chunks...)
	return stats
}

// Wait blocks until the session reaches a terminal status and returns it.
func (s *Session) Wait() Status {
	<-s.done
	return s.Status()
}

// Cancel aborts the in-flight request. It transitions the session to
// StatusCancelled from any non-terminal state and is a no-op afterwards.
// When Cancel returns, no further chunk will be scheduled: in-flight decodes
// may finish, but their scheduling step observes the terminal status and
// becomes a no-op.
func (s *Session) Cancel() {
	s.finish(StatusCancelled, nil)
	s.cancel()
}

// pump is the session's single processing loop. Records are handled strictly
/// one at a time: a chunk's decode is awaited before the next line is pulled,
// so a fast-decoding later chunk can never overtake an earlier one.
func (s *Session) pump() {
	defer close(s.done)
	defer s.source.Close()

	for {
		line, err := s.source.Next()
		if err != nil {
			s.finishFromReadError(err)
			return
		}

		rec := streamio.Parse(line)
		switch rec.Kind {
		case streamio.KindLog:
			s.events.Log(rec.Text)

		case streamio.KindAudioChunk:
			if err := s.handleChunk(rec); err != nil {
				s.finish(StatusFailed, err)
				s.cancel()
				return
			}

		case streamio.KindDone:
			s.mu.Lock()
			if rec.HasInferenceMs {
				s.stats.TotalMs = uint64(rec.InferenceMs)
				s.stats.ServerReported = true
			}
			s.mu.Unlock()
			s.finish(StatusCompleted, nil)
			return
		}
	}
}

// finishFromReadError maps the end of the line source to a terminal status:
// clean EOF completes the session, a caller abort cancels it, and anything
// else fails it.
func (s *Session) finishFromReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.finish(StatusCompleted, nil)
	case errors.Is(err, context.Canceled):
		s.finish(StatusCancelled, nil)
	default:
		s.obs.RecordTransportError(s.ctx, "/stream")
		s.finish(StatusFailed, fmt.Errorf("session: read stream: %w", err))
	}
}

// handleChunk decodes one audio record and schedules it. Decode failures and
// empty clips drop the chunk without touching scheduler state; an ordering
// violation is returned to the caller and fails the session.
func (s *Session) handleChunk(rec streamio.Record) error {
	clip, err := s.decoder.Decode(rec.ChunkIndex, rec.AudioBase64, rec.Format)
	if err != nil {
		s.obs.RecordChunkDropped(s.ctx, "decode")
		s.events.Log(fmt.Sprintf("Error decoding chunk %d: %v", rec.ChunkIndex, err))
		observe.Logger(s.ctx).Warn("dropping undecodable chunk",
			"session_id", s.id, "chunk_index", rec.ChunkIndex, "err", err)
		return nil
	}

	// The decode is done; re-check session state before touching the
	// playback clock so a cancel that landed meanwhile schedules nothing.
	s.mu.Lock()
	if s.status != StatusStreaming {
		s.mu.Unlock()
		return nil
	}

	placement, err := s.sched.Place(clip)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, schedule.ErrEmptyClip) {
			s.obs.RecordChunkDropped(s.ctx, "empty")
			s.events.Log(fmt.Sprintf("Dropping empty chunk %d", clip.Index))
			observe.Logger(s.ctx).Warn("dropping empty chunk",
				"session_id", s.id, "chunk_index", clip.Index)
			return nil
		}
		return err
	}
	s.player.Play(clip, placement)

	receipt := ChunkReceipt{
		Index:      clip.Index,
		Duration:   placement.Duration,
		StartAt:    placement.StartAt,
		ReceivedAt: time.Now(),
	}
	s.stats.Chunks = append(s.stats.Chunks, receipt)

	firstAudio := !s.stats.HasFirstAudio
	if firstAudio {
		s.stats.TimeToFirstAudio = time.Since(s.stats.StartedAt)
		s.stats.HasFirstAudio = true
	}
	ttfa := s.stats.TimeToFirstAudio
	s.mu.Unlock()

	if firstAudio {
		s.obs.TimeToFirstAudio.Record(s.ctx, ttfa.Seconds())
	}
	s.obs.RecordChunkScheduled(s.ctx, s.speaker)
	s.events.ChunkScheduled(receipt)
	return nil
}

// finish moves the session to a terminal status exactly once, finalises the
// metrics, and fires the Finished event. Later calls are no-ops, so a cancel
// racing the pump's own termination resolves to whichever landed first.
func (s *Session) finish(status Status, err error) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.err = err
	if s.stats.TotalMs == 0 && !s.stats.ServerReported {
		s.stats.TotalMs = uint64(time.Since(s.stats.StartedAt).Milliseconds())
	}
	stats := s.stats
	s.mu.Unlock()

	elapsed := time.Since(stats.StartedAt)
	s.obs.StreamDuration.Record(s.ctx, elapsed.Seconds())
	s.obs.ActiveSessions.Add(s.ctx, -1)

	log := observe.Logger(s.ctx)
	switch status {
	case StatusFailed:
		log.Error("session failed", "session_id", s.id, "err", err)
	default:
		log.Info("session finished",
			"session_id", s.id,
			"status", status.String(),
			"chunks", len(stats.Chunks),
			"total_ms", stats.TotalMs,
		)
	}

	s.span.End()
	s.events.Finished(status, stats, err)
}
