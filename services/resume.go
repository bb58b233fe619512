package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxResumeSize caps uploaded resume files at 10 MB.
const MaxResumeSize = 10 << 20

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d[\d\s().\-]{7,}\d)`)
	xmlTags      = regexp.MustCompile(`<[^>]+>`)
	whitespace   = regexp.MustCompile(`[ \t]+`)
)

// ParseResumeText extracts plain text from an uploaded resume. Supported
// formats are PDF and DOCX, detected by file extension.
func ParseResumeText(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDFText(data)
	case ".docx":
		return extractDocxText(data)
	default:
		return "", fmt.Errorf("unsupported resume format %q: only PDF and DOCX are accepted", filepath.Ext(filename))
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	result := normalizeWhitespace(sb.String())
	if result == "" {
		return "", fmt.Errorf("PDF contains no extractable text")
	}
	return result, nil
}

// extractDocxText reads the main document part of a DOCX archive and strips
// the XML markup. Paragraph boundaries become newlines.
func extractDocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to read DOCX document: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read DOCX document: %w", err)
		}

		text := string(raw)
		text = strings.ReplaceAll(text, "</w:p>", "\n")
		text = xmlTags.ReplaceAllString(text, " ")
		result := normalizeWhitespace(text)
		if result == "" {
			return "", fmt.Errorf("DOCX contains no extractable text")
		}
		return result, nil
	}

	return "", fmt.Errorf("DOCX is missing word/document.xml")
}

func normalizeWhitespace(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// ExtractContactFields pulls name, email, and phone from resume text using
// pattern matching. Used when the AI extraction is unavailable; missing
// fields stay empty and are collected from the candidate before the
// interview starts.
func ExtractContactFields(resumeText string) ResumeFields {
	fields := ResumeFields{
		Email: emailPattern.FindString(resumeText),
		Phone: strings.TrimSpace(phonePattern.FindString(resumeText)),
	}

	// Heuristic: the first short line without digits or an @ is usually
	// the candidate's name.
	for _, line := range strings.Split(resumeText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 60 {
			continue
		}
		if strings.ContainsAny(line, "@0123456789") {
			continue
		}
		words := strings.Fields(line)
		if len(words) >= 2 && len(words) <= 4 {
			fields.Name = line
			break
		}
	}

	return fields
}
