//go:build (linux && cgo) || windows || darwin

package playback

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

// speakerRate is fixed for the process; streams are resampled to it.
const speakerRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return speakerErr
}

// SpeakerLoader decodes MP3 and WAV files for the system audio device.
type SpeakerLoader struct{}

// NewLoader returns the audio-device loader.
func NewLoader() Loader { return SpeakerLoader{} }

func (SpeakerLoader) Load(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 12)
	n, _ := io.ReadFull(f, header)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch c := detectCodec(header[:n], filepath.Ext(path)); c {
	case codecMP3:
		streamer, format, err = mp3.Decode(f)
	case codecWAV:
		streamer, format, err = wav.Decode(f)
	default:
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decode: %w", err)
	}

	if err := initSpeaker(); err != nil {
		_ = streamer.Close()
		_ = f.Close()
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &speakerHandle{file: f, streamer: streamer, format: format}, nil
}

type speakerHandle struct {
	mu       sync.Mutex
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	done     chan struct{}
	closed   bool
}

func (h *speakerHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.New("handle closed")
	}
	if h.ctrl == nil {
		resampled := beep.Resample(4, h.format.SampleRate, speakerRate, h.streamer)
		h.ctrl = &beep.Ctrl{Streamer: resampled, Paused: false}
		done := make(chan struct{})
		h.done = done
		speaker.Play(beep.Seq(h.ctrl, beep.Callback(func() {
			close(done)
		})))
		return nil
	}

	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (h *speakerHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctrl != nil && !h.closed {
		speaker.Lock()
		h.ctrl.Paused = true
		speaker.Unlock()
	}
}

func (h *speakerHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctrl == nil || h.closed {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
	}
	speaker.Lock()
	paused := h.ctrl.Paused
	speaker.Unlock()
	return !paused
}

func (h *speakerHandle) Position() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, false
	}
	speaker.Lock()
	pos := h.streamer.Position()
	speaker.Unlock()
	return h.format.SampleRate.D(pos), true
}

func (h *speakerHandle) Seek(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrSeekUnsupported
	}
	n := h.format.SampleRate.N(d)
	if length := h.streamer.Len(); length > 0 && n >= length {
		n = length - 1
	}
	if n < 0 {
		n = 0
	}

	speaker.Lock()
	defer speaker.Unlock()
	return h.streamer.Seek(n)
}

func (h *speakerHandle) Duration() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, false
	}
	n := h.streamer.Len()
	if n <= 0 {
		return 0, false
	}
	return h.format.SampleRate.D(n), true
}

func (h *speakerHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.ctrl != nil {
		// A nil streamer ends the sequence on the next speaker pull.
		speaker.Lock()
		h.ctrl.Streamer = nil
		speaker.Unlock()
	}

	err := h.streamer.Close()
	if ferr := h.file.Close(); ferr != nil && !errors.Is(ferr, os.ErrClosed) && err == nil {
		err = ferr
	}
	return err
}
