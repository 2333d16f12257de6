package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fulfillment-pipeline/internal/core/logger"

	"go.uber.org/zap"
)

// voidedMarker is prepended to voided artifacts so the file itself, not
// just its name, shows it must not be used.
const voidedMarker = "%% VOIDED LABEL - DO NOT SHIP %%\n"

// FileLabelArchive keeps label artifacts under <root>/labels, split into
// an active and a voided area. Voiding renames the artifact with a
// visible VOIDED prefix and relocates it so the active area only ever
// holds usable labels.
type FileLabelArchive struct {
	activeDir string
	voidedDir string
}

// NewFileLabelArchive creates the archive directories under root.
func NewFileLabelArchive(root string) (*FileLabelArchive, error) {
	a := &FileLabelArchive{
		activeDir: filepath.Join(root, "labels", "active"),
		voidedDir: filepath.Join(root, "labels", "voided"),
	}
	for _, dir := range []string{a.activeDir, a.voidedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create label directory %s: %w", dir, err)
		}
	}
	return a, nil
}

// SaveActive implements LabelArchive.
func (a *FileLabelArchive) SaveActive(orderID string, ts time.Time, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s.pdf", orderID, ts.UTC().Format("20060102150405"))
	path := filepath.Join(a.activeDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save label for order %s: %w", orderID, err)
	}
	return path, nil
}

// MarkVoided implements LabelArchive. Every active artifact of the order
// is stamped and moved. An order with no stored artifact is not an
// error; the label may never have been downloaded.
func (a *FileLabelArchive) MarkVoided(orderID string) error {
	matches, err := filepath.Glob(filepath.Join(a.activeDir, orderID+"_*"))
	if err != nil {
		return fmt.Errorf("failed to list labels for order %s: %w", orderID, err)
	}
	if len(matches) == 0 {
		logger.Get().Warn("No stored label artifact to void",
			zap.String("order_id", orderID),
		)
		return nil
	}

	for _, src := range matches {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("failed to read label %s: %w", src, err)
		}

		dst := filepath.Join(a.voidedDir, "VOIDED_"+filepath.Base(src))
		stamped := append([]byte(voidedMarker), data...)
		if err := os.WriteFile(dst, stamped, 0o644); err != nil {
			return fmt.Errorf("failed to write voided label %s: %w", dst, err)
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("failed to remove active label %s: %w", src, err)
		}

		logger.Get().Info("Relocated voided label artifact",
			zap.String("order_id", orderID),
			zap.String("path", dst),
		)
	}
	return nil
}
