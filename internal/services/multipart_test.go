package services

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
)

func TestBuildMultipart_TwoLabelledParts(t *testing.T) {
	payload := []byte("\xff\xd8\xff\xe0 fake jpeg bytes \r\n--not-a-boundary\r\n\x00\x01")

	boundary, err := newBoundary(payload)
	if err != nil {
		t.Fatalf("newBoundary() error = %v", err)
	}
	if bytes.Contains(payload, []byte(boundary)) {
		t.Fatalf("boundary %q occurs in payload", boundary)
	}

	body := buildMultipart(boundary, payload, "p.jpg", "image/jpeg", "preset1")

	if got := bytes.Count(body, []byte("--"+boundary+"\r\n")); got != 2 {
		t.Errorf("part delimiters = %d, want 2", got)
	}
	if !bytes.HasSuffix(body, []byte("--"+boundary+"--\r\n")) {
		t.Error("body does not end with the closing delimiter")
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)

	part, err := reader.NextPart()
	if err != nil {
		t.Fatalf("first part: %v", err)
	}
	if part.FormName() != "file" || part.FileName() != "p.jpg" {
		t.Errorf("first part name=%q filename=%q, want file/p.jpg", part.FormName(), part.FileName())
	}
	if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("first part Content-Type = %q, want image/jpeg", ct)
	}
	got, _ := io.ReadAll(part)
	if !bytes.Equal(got, payload) {
		t.Errorf("file part content differs from payload")
	}

	part, err = reader.NextPart()
	if err != nil {
		t.Fatalf("second part: %v", err)
	}
	if part.FormName() != "upload_preset" {
		t.Errorf("second part name = %q, want upload_preset", part.FormName())
	}
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("parse Content-Disposition: %v", err)
	}
	if _, ok := params["filename"]; ok {
		t.Error("upload_preset part must not carry a filename")
	}
	preset, _ := io.ReadAll(part)
	if string(preset) != "preset1" {
		t.Errorf("preset = %q, want preset1", preset)
	}

	if _, err := reader.NextPart(); err != io.EOF {
		t.Errorf("expected exactly two parts, got extra (err=%v)", err)
	}
}

func TestBuildMultipart_Defaults(t *testing.T) {
	body := string(buildMultipart("b", []byte("x"), "", "", "p"))

	if !strings.Contains(body, `filename="image"`) {
		t.Error("missing default filename")
	}
	if !strings.Contains(body, "Content-Type: application/octet-stream\r\n") {
		t.Error("missing default content type")
	}
}

func TestBuildMultipart_EscapesFilename(t *testing.T) {
	body := string(buildMultipart("b", []byte("x"), "a\"b\r\n.jpg", "image/jpeg", "p"))

	if !strings.Contains(body, `filename="a\"b.jpg"`) {
		t.Errorf("filename not escaped: %q", body)
	}
}

func TestNewBoundary_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		b, err := newBoundary(nil)
		if err != nil {
			t.Fatalf("newBoundary() error = %v", err)
		}
		if !strings.HasPrefix(b, boundaryPrefix) {
			t.Errorf("boundary %q lacks prefix", b)
		}
		if seen[b] {
			t.Fatalf("duplicate boundary %q", b)
		}
		seen[b] = true
	}
}

func stubBoundaryTokens(t *testing.T, tokens ...string) *int {
	t.Helper()
	orig := boundaryToken
	t.Cleanup(func() { boundaryToken = orig })

	calls := 0
	boundaryToken = func() string {
		tok := tokens[calls%len(tokens)]
		calls++
		return tok
	}
	return &calls
}

func TestNewBoundary_RetriesOnCollision(t *testing.T) {
	calls := stubBoundaryTokens(t, "taken", "fresh")
	payload := []byte("image bytes " + boundaryPrefix + "taken and more")

	b, err := newBoundary(payload)
	if err != nil {
		t.Fatalf("newBoundary() error = %v", err)
	}
	if b != boundaryPrefix+"fresh" {
		t.Errorf("boundary = %q, want %q", b, boundaryPrefix+"fresh")
	}
	if *calls != 2 {
		t.Errorf("token draws = %d, want 2", *calls)
	}
}

func TestNewBoundary_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := stubBoundaryTokens(t, "taken")
	payload := []byte(boundaryPrefix + "taken")

	if _, err := newBoundary(payload); err == nil {
		t.Fatal("newBoundary() should fail when every candidate collides")
	}
	if *calls != maxBoundaryAttempts {
		t.Errorf("token draws = %d, want %d", *calls, maxBoundaryAttempts)
	}
}
