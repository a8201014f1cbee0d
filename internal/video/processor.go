// Package video runs the brick detector over every frame of a video file.
package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"brick-detector/internal/brick"
	"brick-detector/internal/metrics"
	"brick-detector/internal/queue"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var (
	// ErrOpenSource is returned when the input video cannot be opened.
	ErrOpenSource = errors.New("cannot open video source")
	// ErrNoFrames is returned when the input video yields no readable frame.
	ErrNoFrames = errors.New("video has no readable frames")
)

// Output describes the annotated video and log written for each job.
type Output struct {
	Dir       string  // destination directory
	Codec     string  // FourCC passed to the writer
	Extension string  // annotated video extension, with dot
	FPS       float64 // output frame rate
}

// DefaultOutput returns the WebM/VP8 output used by the HTTP service.
func DefaultOutput(dir string) Output {
	return Output{
		Dir:       dir,
		Codec:     "VP80",
		Extension: ".webm",
		FPS:       20,
	}
}

// Processor implements queue.Processor.
type Processor struct {
	out      Output
	detector *brick.Detector
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
}

// NewProcessor creates a processor writing artifacts per out. m and logger
// may be nil.
func NewProcessor(out Output, detector *brick.Detector, m *metrics.Metrics, logger *zap.SugaredLogger) *Processor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Processor{
		out:      out,
		detector: detector,
		metrics:  m,
		logger:   logger,
	}
}

// VideoPath returns the annotated video path for a name.
func (p *Processor) VideoPath(name string) string {
	return filepath.Join(p.out.Dir, name+p.out.Extension)
}

// LogPath returns the detection log path for a name.
func (p *Processor) LogPath(name string) string {
	return filepath.Join(p.out.Dir, name+".txt")
}

// Process reads job.Path frame by frame, writes each annotated frame to the
// output video and one detection line per frame to the log. The log is
// truncated first so a re-run replaces it. Cancellation is checked between
// frames.
func (p *Processor) Process(ctx context.Context, job queue.Job) (err error) {
	capture, err := gocv.VideoCaptureFile(job.Path)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return fmt.Errorf("%w %s: %v", ErrOpenSource, job.Path, err)
	}
	defer func() { err = multierr.Append(err, capture.Close()) }()
	if !capture.IsOpened() {
		return fmt.Errorf("%w %s", ErrOpenSource, job.Path)
	}

	if err := os.MkdirAll(p.out.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logFile, err := os.Create(p.LogPath(job.Name))
	if err != nil {
		return fmt.Errorf("failed to create detection log: %w", err)
	}
	defer func() { err = multierr.Append(err, logFile.Close()) }()

	logw := bufio.NewWriter(logFile)
	defer func() { err = multierr.Append(err, logw.Flush()) }()

	var writer *gocv.VideoWriter
	defer func() {
		if writer != nil {
			err = multierr.Append(err, writer.Close())
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}

		if writer == nil {
			writer, err = gocv.VideoWriterFile(p.VideoPath(job.Name), p.out.Codec, p.out.FPS, frame.Cols(), frame.Rows(), true)
			if err != nil {
				writer = nil
				return fmt.Errorf("failed to create video writer: %w", err)
			}
			if !writer.IsOpened() {
				return fmt.Errorf("failed to open %s writer for %s", p.out.Codec, p.VideoPath(job.Name))
			}
		}

		if err := p.processFrame(frame, writer, logw); err != nil {
			return fmt.Errorf("frame %d: %w", frames, err)
		}
		frames++
	}

	if frames == 0 {
		return fmt.Errorf("%s: %w", job.Path, ErrNoFrames)
	}
	p.logger.Debugw("video complete", "name", job.Name, "frames", frames)
	return nil
}

func (p *Processor) processFrame(frame gocv.Mat, writer *gocv.VideoWriter, logw *bufio.Writer) error {
	res, err := p.detector.Detect(frame)
	if err != nil {
		return err
	}
	defer res.Close()

	if err := writer.Write(res.Annotated); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if _, err := logw.WriteString(brick.FormatLogLine(res.Detections)); err != nil {
		return fmt.Errorf("failed to write detection log: %w", err)
	}

	p.metrics.ObserveFrame(len(res.Detections))
	return nil
}
