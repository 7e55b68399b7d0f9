package upload

import (
	"mime"
	"net/http"
	"strings"

	"github.com/kerm1977/plantilla1/internal/model"
)

// extraTypes covers extensions missing from the platform MIME tables.
var extraTypes = map[string]string{
	"gpx":  "application/gpx+xml",
	"kml":  "application/vnd.google-earth.kml+xml",
	"kmz":  "application/vnd.google-earth.kmz",
	"ico":  "image/x-icon",
	"icon": "image/x-icon",
	"aiff": "audio/x-aiff",
	"wma":  "audio/x-ms-wma",
	"wmv":  "video/x-ms-wmv",
	"avi":  "video/x-msvideo",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"odf":  "application/vnd.oasis.opendocument.formula",
	"txt":  "text/plain",
	"xml":  "application/xml",
}

const octetStream = "application/octet-stream"

// DetectMIME guesses the MIME type from the extension, falling back to content
// sniffing of head. Parameters such as charset are dropped.
func DetectMIME(name string, head []byte) string {
	ext := Extension(name)
	if t, ok := extraTypes[ext]; ok {
		return t
	}
	if ext != "" {
		if t := mime.TypeByExtension("." + ext); t != "" {
			return stripParams(t)
		}
	}
	if len(head) > 0 {
		return stripParams(http.DetectContentType(head))
	}
	return octetStream
}

func stripParams(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

var documentPrefixes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml",
	"application/vnd.ms-excel",
	"application/vnd.oasis.opendocument.spreadsheet",
	"application/xml",
	"text/xml",
}

var mapTypes = map[string]bool{
	"application/gpx+xml":                  true,
	"application/vnd.google-earth.kml+xml": true,
	"application/vnd.google-earth.kmz":     true,
}

// Classify maps a MIME type to its file category. Icons are checked before the
// generic image prefix.
func Classify(mimeType string) model.FileCategory {
	switch {
	case mimeType == "image/x-icon" || mimeType == "image/vnd.microsoft.icon":
		return model.CategoryIcon
	case strings.HasPrefix(mimeType, "image/"):
		return model.CategoryImage
	case strings.HasPrefix(mimeType, "audio/"):
		return model.CategoryAudio
	case strings.HasPrefix(mimeType, "video/"):
		return model.CategoryVideo
	case mapTypes[mimeType]:
		return model.CategoryMap
	case mimeType == "text/plain":
		return model.CategoryDocument
	}
	for _, p := range documentPrefixes {
		if strings.HasPrefix(mimeType, p) {
			return model.CategoryDocument
		}
	}
	return model.CategoryOther
}
