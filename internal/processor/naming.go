package processor

import (
	"path"
	"path/filepath"
	"strings"

	"squeeze/internal/config"
)

// OutputRel returns the output location of job relative to the output
// root, slash separated.
//
//	prefix: <rel dir>/<stem>_<KB>kb<ext>
//	folder: <KB>/<rel dir>/<stem><ext>
func OutputRel(cfg config.Config, job Job) string {
	dir, base := path.Split(job.RelPath)
	stem := strings.TrimSuffix(base, path.Ext(base))
	ext := cfg.Format.Extension()

	if cfg.Naming == config.NamingPrefix {
		return path.Join(dir, stem+"_"+cfg.TargetLabel()+"kb"+ext)
	}
	return path.Join(cfg.TargetLabel(), dir, stem+ext)
}

// OutputPath is OutputRel joined onto the output root.
func OutputPath(cfg config.Config, job Job) string {
	return filepath.Join(cfg.OutputDir, filepath.FromSlash(OutputRel(cfg, job)))
}
