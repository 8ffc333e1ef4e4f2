package audio

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultFilename is used when the client sends a file part without a name
const DefaultFilename = "audio"

// containerTypes are video containers that routinely carry audio-only
// recordings (browser MediaRecorder emits video/webm for voice notes).
var containerTypes = []string{
	"video/webm",
	"video/mp4",
	"video/ogg",
	"video/quicktime",
	"video/x-matroska",
	"video/3gpp",
}

// Detection describes what an upload looks like from its leading bytes
type Detection struct {
	MIME      string // e.g. "audio/wav"
	Extension string // e.g. ".wav", empty when unknown
	IsAudio   bool
}

// OctetStream is reported for empty or unrecognized content
const OctetStream = "application/octet-stream"

// Detect sniffs data. An empty slice is reported as OctetStream and not audio.
func Detect(data []byte) Detection {
	if len(data) == 0 {
		// mimetype classifies zero bytes as text/plain
		return Detection{MIME: OctetStream}
	}
	m := mimetype.Detect(data)
	return Detection{
		MIME:      m.String(),
		Extension: m.Extension(),
		IsAudio:   isAudio(m),
	}
}

func isAudio(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
		for _, c := range containerTypes {
			if m.Is(c) {
				return true
			}
		}
	}
	return false
}

// Filename returns a name for the upload that carries a file extension.
// Some backends infer the container format from it.
func Filename(original string, d Detection) string {
	name := filepath.Base(strings.TrimSpace(original))
	if name == "." || name == "/" || name == "" {
		name = DefaultFilename
	}
	if filepath.Ext(name) == "" && d.Extension != "" {
		name += d.Extension
	}
	return name
}
