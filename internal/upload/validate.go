// Package upload stores files posted by members: avatars, the About Us logo and
// the generic file library. Purpose-specific uploads keep human-readable names
// made unique by probing (_1, _2, ...); the library uses random names.
package upload

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyName        = errors.New("el archivo no tiene nombre")
	ErrForbiddenChars   = errors.New(`el nombre del archivo contiene caracteres no permitidos: # < > ! $ % & / = ? ¡ ' " ¿ ° |`)
	ErrExtensionDenied  = errors.New("tipo de archivo no permitido")
	ErrTooManyCollision = errors.New("no se pudo generar un nombre de archivo único")
)

// forbiddenChars is the filesystem/URL-unsafe blacklist for human-facing names.
const forbiddenChars = `#<>!$%&/=?¡'"¿°|`

// ExtSet is a set of lower-case extensions without the dot.
type ExtSet map[string]struct{}

func NewExtSet(exts ...string) ExtSet {
	s := make(ExtSet, len(exts))
	for _, e := range exts {
		s[strings.ToLower(e)] = struct{}{}
	}
	return s
}

var (
	ImageExtensions = NewExtSet("png", "jpg", "jpeg", "gif")
	LogoExtensions  = NewExtSet("png", "jpg", "jpeg")
	FileExtensions  = NewExtSet("pdf", "jpg", "jpeg", "png", "gif", "mp3", "mp4", "aiff", "txt",
		"docx", "xls", "odf", "xml", "gpx", "kml", "kmz", "ico", "icon", "wma", "wmv", "avi")
)

// ValidateFilename rejects empty names and names carrying any blacklisted character.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if strings.ContainsAny(name, forbiddenChars) {
		return ErrForbiddenChars
	}
	return nil
}

// Extension returns the lower-cased substring after the last dot, or "".
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ValidateExtension reports whether name has an extension in allowed.
func ValidateExtension(name string, allowed ExtSet) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	_, ok := allowed[ext]
	return ok
}

// CleanName strips any client-supplied directory part (browsers on Windows send
// full paths) so names can never escape the target directory.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return filepath.Base(name)
}
