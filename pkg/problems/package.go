package problems

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExtractPackage unzips a problem package (as stored in an internal file)
// into destDir. This is plain archive handling, not a domain concern any
// library in the example pack addresses, so it is implemented directly on
// the standard library's archive/zip rather than adopting a third-party
// archive package.
func ExtractPackage(src io.ReaderAt, size int64, destDir string) error {
	r, err := zip.NewReader(src, size)
	if err != nil {
		return fmt.Errorf("problems: open package zip: %w", err)
	}
	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.Clean(f.Name))
		if !isWithin(destDir, target) {
			return fmt.Errorf("problems: package entry %q escapes destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("problems: mkdir %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("problems: mkdir %s: %w", filepath.Dir(target), err)
		}
		if err := extractOne(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("problems: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("problems: create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("problems: write %s: %w", target, err)
	}
	return nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
