package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/domain"
)

// WriteFiles renders snap once per format into dir. Each file is written to a
// temp file first and renamed, so readers never see a partial report.
// Every format is attempted; errors are combined.
func WriteFiles(dir string, formats []Format, snap domain.Snapshot, opts Options) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report dir: %w", err)
	}
	var errs error
	for _, f := range formats {
		name, ok := Formats[f]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("unknown report format %q", f))
			continue
		}
		var buf bytes.Buffer
		if err := Render(&buf, f, snap, opts); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("render %s: %w", f, err))
			continue
		}
		if err := writeAtomic(filepath.Join(dir, name), buf.Bytes()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %s: %w", name, err))
		}
	}
	return errs
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FileSink writes every published snapshot to disk.
type FileSink struct {
	Dir     string
	Formats []Format
	Options Options
	Logger  *zap.Logger
}

func (s *FileSink) Publish(ctx context.Context, snap domain.Snapshot) error {
	if err := WriteFiles(s.Dir, s.Formats, snap, s.Options); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Debug("report_written",
			zap.String("dir", s.Dir),
			zap.Int("formats", len(s.Formats)),
		)
	}
	return nil
}
