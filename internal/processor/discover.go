package processor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"squeeze/pkg/imgutil"
)

// Discover walks root and returns every file with a supported image
// extension, sorted by relative path. Dot files and dot directories are
// ignored, and so is outputDir when it sits inside root.
func Discover(root, outputDir string) ([]Job, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", root)
	}

	var outputAbs string
	if outputDir != "" {
		if abs, err := filepath.Abs(outputDir); err == nil && abs != absRoot && isWithin(abs, absRoot) {
			outputAbs = abs
		}
	}

	var jobs []Job
	err = fs.WalkDir(os.DirFS(absRoot), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if outputAbs != "" && isWithin(filepath.Join(absRoot, path), outputAbs) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !imgutil.IsSupportedInput(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		jobs = append(jobs, Job{
			Path:    filepath.Join(absRoot, filepath.FromSlash(path)),
			RelPath: path,
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RelPath < jobs[j].RelPath })
	return jobs, nil
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
