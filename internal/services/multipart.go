package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	boundaryPrefix      = "----RoadReportBoundary"
	maxBoundaryAttempts = 8
	defaultContentType  = "application/octet-stream"
	defaultFilename     = "image"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"", "\r", "", "\n", "")

// boundaryToken supplies the random part of a boundary
var boundaryToken = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newBoundary returns a random boundary that does not occur anywhere in payload
func newBoundary(payload []byte) (string, error) {
	for i := 0; i < maxBoundaryAttempts; i++ {
		b := boundaryPrefix + boundaryToken()
		if !bytes.Contains(payload, []byte(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("no boundary found that is absent from a %d byte payload", len(payload))
}

// buildMultipart writes a multipart/form-data body with exactly two parts:
// the binary "file" part and the "upload_preset" field.
func buildMultipart(boundary string, payload []byte, filename, contentType, preset string) []byte {
	if filename == "" {
		filename = defaultFilename
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	var body bytes.Buffer
	body.Grow(len(payload) + 2*len(boundary) + 256)

	body.WriteString("--" + boundary + "\r\n")
	fmt.Fprintf(&body, "Content-Disposition: form-data; name=\"file\"; filename=\"%s\"\r\n", quoteEscaper.Replace(filename))
	fmt.Fprintf(&body, "Content-Type: %s\r\n\r\n", contentType)
	body.Write(payload)
	body.WriteString("\r\n")

	body.WriteString("--" + boundary + "\r\n")
	body.WriteString("Content-Disposition: form-data; name=\"upload_preset\"\r\n\r\n")
	body.WriteString(preset)
	body.WriteString("\r\n")

	body.WriteString("--" + boundary + "--\r\n")
	return body.Bytes()
}
