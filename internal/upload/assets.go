package upload

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kerm1977/plantilla1/internal/model"
)

// Asset is a file the application itself keeps on disk (avatars, logos). Assets
// are listed next to library files but have no database row or owner.
type Asset struct {
	Name     string
	Path     string
	Source   string // label of the directory it was found in
	MimeType string
	Category model.FileCategory
	Size     int64
	ModTime  time.Time
}

// ScanAssets walks every directory in dirs (label -> path). Missing directories
// are skipped. Results are sorted by source, then name.
func ScanAssets(dirs map[string]string) []Asset {
	var assets []Asset
	for source, dir := range dirs {
		if dir == "" {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			mimeType := DetectMIME(d.Name(), nil)
			assets = append(assets, Asset{
				Name:     d.Name(),
				Path:     filepath.ToSlash(path),
				Source:   source,
				MimeType: mimeType,
				Category: Classify(mimeType),
				Size:     info.Size(),
				ModTime:  info.ModTime(),
			})
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("upload: asset scan failed")
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Source != assets[j].Source {
			return assets[i].Source < assets[j].Source
		}
		return assets[i].Name < assets[j].Name
	})
	return assets
}
