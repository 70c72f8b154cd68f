package api

import (
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// DefaultArtifactName is used when the response does not name the file.
const DefaultArtifactName = "artifacts.zip"

// Artifact is a streamed artifacts archive. The caller closes Body.
type Artifact struct {
	Filename string
	Body     io.ReadCloser
}

// FilenameFromDisposition returns the file name carried by a
// Content-Disposition header, or DefaultArtifactName.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return DefaultArtifactName
	}

	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return DefaultArtifactName
	}

	name := params["filename"]
	name = strings.TrimSpace(filepath.Base(filepath.Clean("/" + name)))
	if name == "" || name == "/" || name == "." {
		return DefaultArtifactName
	}
	return name
}
