// Package audioplayer plays synthesized narration audio: a bounded,
// drop-oldest queue feeding one persistent malgo playback device,
// with MP3 decode, short fade in/out, and format renegotiation on
// sample-rate change. The malgo wiring (InitContext/InitDevice, a
// DeviceCallbacks.Data callback that copies from a mutex-guarded byte
// slice into pOutput, padding the remainder with silence) follows the
// usual playback-callback pattern; the compressed-blob decode step feeds
// it since upstream TTS providers return MP3, not raw PCM.
package audioplayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lokutor-ai/vibebridge/internal/logging"
)

// queueCapacity bounds the pending-blob queue. Enqueue drops the oldest
// pending blob on overflow rather than blocking the caller; losing some
// narration is preferable to stalling the terminal mirror.
const queueCapacity = 32

// fadeFrames is the short fade-in/out duration applied to every chunk,
// roughly 5ms at a typical 44.1kHz/48kHz sample rate.
const fadeFrames = 220

// playbackBufferFrames is the device write chunk size used to reduce
// underrun risk.
const playbackBufferFrames = 4096

// Player plays enqueued MP3 blobs in arrival order on the host's default
// output device. The zero value is not usable; construct with New.
type Player struct {
	logger logging.Logger

	mu       sync.Mutex
	queue    [][]byte
	notifyCh chan struct{}

	started  bool
	stopCh   chan struct{}
	workerWG sync.WaitGroup

	unfinished int64

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	deviceMu    sync.Mutex
	curFormat   pcmFormat
	deviceOpen  bool
	playbackBuf []byte
}

// New returns a Player. logger defaults to a no-op logger when nil.
func New(logger logging.Logger) *Player {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Player{
		logger:   logger,
		notifyCh: make(chan struct{}, 1),
	}
}

// Start launches the background worker if it is not already running. It is
// idempotent.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	p.mctx = mctx
	p.stopCh = make(chan struct{})
	p.started = true

	p.workerWG.Add(1)
	go p.run()
	return nil
}

// QueueSize reports the number of blobs currently pending playback.
func (p *Player) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Enqueue appends blob to the pending queue without blocking. Empty blobs
// are dropped silently; on overflow the oldest pending blob is dropped to
// make room.
func (p *Player) Enqueue(blob []byte) {
	if len(blob) == 0 {
		return
	}
	p.mu.Lock()
	if len(p.queue) >= queueCapacity {
		p.logger.Warn("audioplayer: queue full, dropping oldest")
		p.queue = p.queue[1:]
		atomic.AddInt64(&p.unfinished, -1)
	}
	p.queue = append(p.queue, blob)
	atomic.AddInt64(&p.unfinished, 1)
	p.mu.Unlock()

	select {
	case p.notifyCh <- struct{}{}:
	default:
	}
}

func (p *Player) dequeue() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	blob := p.queue[0]
	p.queue = p.queue[1:]
	return blob, true
}

// Stop sends the sentinel and waits up to ~2s for the worker to drain
// cleanly before tearing down the device.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		p.logger.Warn("audioplayer: worker did not drain within 2s")
	}

	p.closeDevice()
	if p.mctx != nil {
		p.mctx.Uninit()
		p.mctx = nil
	}
}

// WaitForCompletion blocks until every enqueued blob has been played (the
// queue is empty and nothing is mid-decode) or timeout elapses. A
// non-positive timeout waits indefinitely.
func (p *Player) WaitForCompletion(ctx context.Context, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if atomic.LoadInt64(&p.unfinished) == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("audioplayer: wait for completion timed out")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Player) run() {
	defer p.workerWG.Done()
	for {
		blob, ok := p.dequeue()
		if !ok {
			select {
			case <-p.stopCh:
				return
			case <-p.notifyCh:
				continue
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		err := p.playBlob(blob)
		atomic.AddInt64(&p.unfinished, -1)
		if err != nil {
			p.logger.Error("audioplayer: play failed", "err", err)
			if errors.Is(err, ErrStreamOpen) {
				return
			}
		}

		select {
		case <-p.stopCh:
			return
		default:
		}
	}
}

func (p *Player) playBlob(blob []byte) error {
	decoded, err := decodeMP3(blob)
	if err != nil {
		p.logger.Warn("audioplayer: decode failed, dropping blob", "err", err)
		return nil
	}
	decoded.pcm = applyFade(decoded.pcm, decoded.format.channels, fadeFrames)

	if err := p.ensureDevice(decoded.format); err != nil {
		return err
	}

	p.deviceMu.Lock()
	p.playbackBuf = append(p.playbackBuf, decoded.pcm...)
	p.deviceMu.Unlock()

	return p.waitForBufferDrain()
}

// waitForBufferDrain blocks until the playback callback has consumed the
// buffered PCM, so the worker doesn't race ahead and decode the next blob
// before this one has finished playing (which would defeat per-chunk
// ordering of audible playback).
func (p *Player) waitForBufferDrain() error {
	for {
		p.deviceMu.Lock()
		remaining := len(p.playbackBuf)
		p.deviceMu.Unlock()
		if remaining == 0 {
			return nil
		}
		select {
		case <-p.stopCh:
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (p *Player) ensureDevice(format pcmFormat) error {
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()

	if p.deviceOpen && p.curFormat == format {
		return nil
	}
	if p.deviceOpen {
		p.device.Uninit()
		p.deviceOpen = false
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.channels)
	deviceConfig.SampleRate = uint32(format.sampleRate)
	deviceConfig.PeriodSizeInFrames = playbackBufferFrames

	onSamples := func(pOutput, _ []byte, _ uint32) {
		p.deviceMu.Lock()
		n := copy(pOutput, p.playbackBuf)
		p.playbackBuf = p.playbackBuf[n:]
		p.deviceMu.Unlock()
		for i := n; i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}

	device, err := malgo.InitDevice(p.mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}

	p.device = device
	p.curFormat = format
	p.deviceOpen = true
	p.logger.Info("audioplayer: output stream (re)opened", "sample_rate", format.sampleRate, "channels", format.channels)
	return nil
}

func (p *Player) closeDevice() {
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()
	if p.deviceOpen {
		p.device.Uninit()
		p.deviceOpen = false
	}
}
