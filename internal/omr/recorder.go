package omr

import (
	"path/filepath"
	"strings"

	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/logger"
)

// OverlayRecorder builds response maps like its Pipeline and also saves an
// annotated overlay of every sheet into a directory for later review.
type OverlayRecorder struct {
	pipeline *Pipeline
	dir      string
	log      logger.Logger
}

// NewOverlayRecorder writes overlays for p's sheets into dir.
func NewOverlayRecorder(p *Pipeline, dir string, log logger.Logger) *OverlayRecorder {
	if log == nil {
		log = logger.Nop{}
	}
	return &OverlayRecorder{pipeline: p, dir: dir, log: log}
}

// OverlayPath returns where the overlay for the sheet at path is written.
func (r *OverlayRecorder) OverlayPath(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "_overlay.png"
	return filepath.Join(r.dir, name)
}

// BuildResponseMap analyses the sheet and saves its overlay. A failure to save
// the overlay is logged and does not fail the sheet.
func (r *OverlayRecorder) BuildResponseMap(path string) (ResponseMap, error) {
	a, err := r.pipeline.Analyze(path)
	if err != nil {
		return nil, err
	}

	out := r.OverlayPath(path)
	if err := imaging.SaveImage(a.Overlay(), out); err != nil {
		r.log.Warning("overlay", "failed to save overlay", logger.Fields{"sheet": path, "error": err.Error()})
	} else {
		r.log.Debug("overlay", "overlay saved", logger.Fields{"sheet": path, "overlay": out})
	}
	return a.Responses, nil
}
