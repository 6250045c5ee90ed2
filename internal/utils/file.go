// Package utils holds filesystem helpers shared by the CLI and the API.
package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the timestamp format used in saved crop names
const TimestampLayout = "20060102_150405"

var (
	partFilenameRe = regexp.MustCompile(`^[a-z]+_[0-9a-f]{8}_[0-9]{8}_[0-9]{6}\.(jpg|png|webp)$`)

	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
)

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// IsImageFile reports whether name has a jpg, png or webp extension.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// NewSessionID returns the short id grouping the crops of one analysis
func NewSessionID() string {
	return uuid.NewString()[:8]
}

// PartFilename names a saved region crop: {part}_{session}_{YYYYmmdd_HHMMSS}.jpg
func PartFilename(part, session string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.jpg", part, session, at.Format(TimestampLayout))
}

// IsPartFilename reports whether name looks like a file written by PartFilename.
// It rejects anything with path separators.
func IsPartFilename(name string) bool {
	return partFilenameRe.MatchString(name)
}

// ReportFilename maps an input image to {outputDir}/{stem}_report.json
func ReportFilename(input, outputDir string) string {
	base := filepath.Base(input)
	stem := sanitize(strings.TrimSuffix(base, filepath.Ext(base)))
	return filepath.Join(outputDir, stem+"_report.json")
}

// ListImageFiles walks dir and returns every image file below it.
func ListImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.Type().IsRegular() && IsImageFile(path):
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// FileExists is true for existing non-directories.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)
	return strings.Trim(name, " .")
}
