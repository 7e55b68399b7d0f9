package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxProbes bounds the _N suffix search.
const maxProbes = 10000

// candidate returns original with the n-th suffix applied before the extension.
// n == 0 returns original unchanged. A dotfile such as ".png" has no extension,
// so its suffix goes at the end: ".png_1".
func candidate(original string, n int) string {
	if n == 0 {
		return original
	}
	ext := filepath.Ext(original)
	stem := strings.TrimSuffix(original, ext)
	if strings.Trim(stem, ".") == "" {
		stem, ext = original, ""
	}
	return fmt.Sprintf("%s_%d%s", stem, n, ext)
}

// GenerateUniqueName returns original if it does not exist in dir, otherwise
// the first free stem_N.ext. It only probes; Manager.Store creates the file
// atomically and re-probes on a lost race.
func GenerateUniqueName(original, dir string) (string, error) {
	name, _, err := nextFree(original, dir, 0)
	return name, err
}

func nextFree(original, dir string, from int) (string, int, error) {
	for n := from; n < maxProbes; n++ {
		name := candidate(original, n)
		_, err := os.Stat(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, n, nil
		}
		if err != nil {
			return "", n, err
		}
	}
	return "", maxProbes, ErrTooManyCollision
}
