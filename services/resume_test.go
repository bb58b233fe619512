package services

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestParseResumeTextDocx(t *testing.T) {
	doc := `<?xml version="1.0"?><w:document><w:body>` +
		`<w:p><w:r><w:t>Jordan Lee</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>jordan@example.com</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Senior React developer</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	text, err := ParseResumeText("resume.docx", buildDocx(t, doc))
	if err != nil {
		t.Fatalf("ParseResumeText() = %v", err)
	}

	for _, want := range []string{"Jordan Lee", "jordan@example.com", "Senior React developer"} {
		if !strings.Contains(text, want) {
			t.Errorf("extracted text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "<w:") {
		t.Errorf("extracted text still contains markup:\n%s", text)
	}
}

func TestParseResumeTextUnsupportedFormat(t *testing.T) {
	if _, err := ParseResumeText("resume.txt", []byte("plain text")); err == nil {
		t.Error("ParseResumeText accepted a .txt file")
	}
	if _, err := ParseResumeText("resume", []byte("no extension")); err == nil {
		t.Error("ParseResumeText accepted a file without extension")
	}
}

func TestParseResumeTextEmptyDocx(t *testing.T) {
	doc := `<?xml version="1.0"?><w:document><w:body></w:body></w:document>`
	if _, err := ParseResumeText("resume.docx", buildDocx(t, doc)); err == nil {
		t.Error("ParseResumeText accepted a DOCX with no text")
	}
}

func TestExtractContactFields(t *testing.T) {
	resume := strings.Join([]string{
		"Jordan Lee",
		"jordan.lee@example.com | +1 (555) 013-7421",
		"Experienced full stack developer with 8 years of React and Node.js",
		"EXPERIENCE",
	}, "\n")

	fields := ExtractContactFields(resume)
	if fields.Name != "Jordan Lee" {
		t.Errorf("Name = %q, want %q", fields.Name, "Jordan Lee")
	}
	if fields.Email != "jordan.lee@example.com" {
		t.Errorf("Email = %q", fields.Email)
	}
	if !strings.Contains(fields.Phone, "555") {
		t.Errorf("Phone = %q, want a number containing 555", fields.Phone)
	}
}

func TestExtractContactFieldsMissing(t *testing.T) {
	fields := ExtractContactFields("A resume with 10 years of experience and no contact block at all in this long line")
	if fields.Email != "" {
		t.Errorf("Email = %q, want empty", fields.Email)
	}
	if fields.Name != "" {
		t.Errorf("Name = %q, want empty", fields.Name)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  Jordan   Lee  \n\n\n  Developer \t Resume  \n"
	want := "Jordan Lee\nDeveloper Resume"
	if got := normalizeWhitespace(in); got != want {
		t.Errorf("normalizeWhitespace() = %q, want %q", got, want)
	}
}
