package dictation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sotto/audio"
	"sotto/log"
	"sotto/record"
	"sotto/transcriber"
)

var ErrNoRecording = errors.New("no recording to transcribe")

// Cues are the audible ticks played around a recording. Any method may be
// called from a goroutine.
type Cues interface {
	PlayStart()
	PlayEnd()
	PlayError()
}

type Config struct {
	Capture     audio.CaptureDevice
	Transcriber transcriber.Transcriber
	Session     transcriber.SessionConfig

	// RecordingsDir receives `record` output and failed dictations.
	RecordingsDir string

	Tail     time.Duration
	AutoStop bool
	Cues     Cues
	OnLevel  func(level float64)
}

// Dictator runs dictations and plain recordings against one capture device.
type Dictator struct {
	Machine
	cfg Config

	mu     sync.Mutex
	latest string
}

func New(cfg Config) *Dictator {
	return &Dictator{cfg: cfg}
}

// Latest is the most recent recording kept on disk, or "".
func (d *Dictator) Latest() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}

func (d *Dictator) setLatest(path string) {
	d.mu.Lock()
	d.latest = path
	d.mu.Unlock()
}

func (d *Dictator) recorder() *record.Recorder {
	return &record.Recorder{
		Capture:  d.cfg.Capture,
		Tail:     d.cfg.Tail,
		AutoStop: d.cfg.AutoStop,
		OnLevel:  d.cfg.OnLevel,
		OnSilence: func(ev record.SilenceEvent) {
			log.Info(ev.String())
			switch ev {
			case record.SilenceWarn, record.SilenceRepeat:
				d.cue(Cues.PlayError)
			}
		},
	}
}

func (d *Dictator) cue(play func(Cues)) {
	if d.cfg.Cues != nil {
		go play(d.cfg.Cues)
	}
}

func (d *Dictator) newRecordingPath(prefix string) (string, error) {
	if err := os.MkdirAll(d.cfg.RecordingsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory: %w", err)
	}
	name := prefix + time.Now().Format("20060102-150405.000") + ".wav"
	return filepath.Join(d.cfg.RecordingsDir, name), nil
}

// Dictate records until EndRecording (or silence auto-stop) while streaming
// the audio into a transcription session, then returns the transcript.
// Recordings shorter than record.MinDuration yield "".
//
// The audio is also written to disk. It is deleted on success and kept as
// the latest recording when transcription fails, so it can be retried.
func (d *Dictator) Dictate(ctx context.Context) (string, error) {
	stop, err := d.Begin()
	if err != nil {
		return "", err
	}
	defer d.Finish()

	sess, err := d.cfg.Transcriber.NewSession(ctx, d.cfg.Session)
	if err != nil {
		return "", err
	}
	go func() {
		for range sess.Updates() {
		}
	}()

	path, err := d.newRecordingPath("dictation-")
	if err != nil {
		sess.Close()
		return "", err
	}
	wav, err := audio.CreateWAV(path)
	if err != nil {
		sess.Close()
		return "", fmt.Errorf("failed to create temporary file to record to: %w", err)
	}

	d.cue(Cues.PlayStart)
	st, recErr := d.recorder().Record(ctx, stop, io.MultiWriter(wav, transcriber.Writer(sess)))
	closeErr := wav.Close()
	d.cue(Cues.PlayEnd)
	d.transcribing()

	log.Recording(log.RecordingStats{Device: st.Device, Frames: st.Frames, Duration: st.Duration})

	if recErr == nil {
		recErr = closeErr
	}
	if recErr != nil || st.Short() {
		sess.Close()
		os.Remove(path)
		return "", recErr
	}

	res, err := sess.Close()
	if err != nil {
		d.setLatest(path)
		d.cue(Cues.PlayError)
		return "", err
	}
	os.Remove(path)

	d.logResult(res)
	return res.Text, nil
}

// Record captures to a new WAV file under the recordings directory until
// EndRecording and returns its path.
func (d *Dictator) Record(ctx context.Context) (string, error) {
	stop, err := d.Begin()
	if err != nil {
		return "", err
	}
	defer d.Finish()

	path, err := d.newRecordingPath("")
	if err != nil {
		return "", err
	}
	wav, err := audio.CreateWAV(path)
	if err != nil {
		return "", err
	}

	d.cue(Cues.PlayStart)
	st, recErr := d.recorder().Record(ctx, stop, wav)
	closeErr := wav.Close()
	d.cue(Cues.PlayEnd)

	if recErr == nil {
		recErr = closeErr
	}
	if recErr != nil {
		os.Remove(path)
		return "", recErr
	}

	log.Recording(log.RecordingStats{Device: st.Device, Path: path, Frames: st.Frames, Duration: st.Duration})
	d.setLatest(path)
	return path, nil
}

// Transcribe transcribes a WAV file, or the latest recording when path is
// empty. It does not touch the microphone and may run during a recording.
func (d *Dictator) Transcribe(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = d.Latest()
	}
	if path == "" {
		return "", ErrNoRecording
	}
	res, err := transcriber.TranscribeFile(ctx, d.cfg.Transcriber, path, d.cfg.Session)
	if err != nil {
		return "", err
	}
	d.logResult(res)
	return res.Text, nil
}

func (d *Dictator) logResult(res transcriber.SessionResult) {
	if b := res.Batch; b != nil {
		log.Transcription(log.TranscriptionStats{
			Provider:    d.cfg.Transcriber.Name(),
			Format:      d.cfg.Session.Format,
			AudioS:      b.AudioLengthS,
			EncodedKB:   b.EncodedSizeKB,
			TotalMs:     b.TotalTimeMs,
			ConnReused:  b.ConnReused,
			TLSProtocol: b.TLSProtocol,
		})
	}
	if res.Text != "" {
		log.TranscriptionText(res.Text)
	}
}
