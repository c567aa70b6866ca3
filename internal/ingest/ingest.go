package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/core"
	"github.com/joseph-ayodele/docrefine/internal/entity"
)

// Submitter accepts a document for background rewriting.
type Submitter interface {
	Submit(ctx context.Context, up core.Upload) (*entity.Document, error)
}

// Config describes the inbox directory.
type Config struct {
	Dir      string
	Style    string
	Debounce time.Duration
}

// Inbox submits every document dropped into a directory. Submitted files are
// removed by the processor once their text has been read, whether or not the
// submission succeeded.
type Inbox struct {
	cfg       Config
	submitter Submitter
	logger    *slog.Logger
}

func NewInbox(cfg Config, submitter Submitter, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{cfg: cfg, submitter: submitter, logger: logger}
}

// Run watches the inbox until ctx is done. Files already present are submitted first.
func (in *Inbox) Run(ctx context.Context) error {
	if in.cfg.Dir == "" {
		return errors.New("inbox directory is required")
	}
	if !constants.WritingStyle(in.cfg.Style).Valid() {
		return fmt.Errorf("inbox style %q is not a writing style", in.cfg.Style)
	}
	paths, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{in.cfg.Dir},
		InitialScan: true,
		Debounce:    in.cfg.Debounce,
	}, in.logger)
	if err != nil {
		return err
	}
	in.logger.Info("inbox watching", "dir", in.cfg.Dir, "style", in.cfg.Style)

	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			in.submit(ctx, p)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("inbox watcher error", "dir", in.cfg.Dir, "error", err)
		}
	}
}

func (in *Inbox) submit(ctx context.Context, path string) {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		// already consumed by an earlier event
		return
	}
	doc, err := in.submitter.Submit(ctx, core.Upload{
		Path:         path,
		OriginalName: filepath.Base(path),
		Size:         fi.Size(),
		Style:        in.cfg.Style,
		Temporary:    true,
	})
	if err != nil {
		in.logger.Warn("inbox submit failed", "path", path, "error", err)
		return
	}
	in.logger.Info("inbox submitted", "path", path, "document_id", doc.ID)
}
