// Package extract flattens an uploaded document into a single text string.
package extract

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

// Format is a supported upload type, named by its lowercase extension.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// ErrFileTypeNotAllowed is returned for any extension other than pdf, docx or txt.
var ErrFileTypeNotAllowed = errors.New("file type not allowed")

// AllowedFormats lists the accepted extensions.
func AllowedFormats() []Format {
	return []Format{FormatPDF, FormatTXT, FormatDOCX}
}

// DetectFormat maps a filename to its format, case-insensitively.
func DetectFormat(filename string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, f := range AllowedFormats() {
		if ext == string(f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrFileTypeNotAllowed, filepath.Ext(filename))
}

// File reads the document at path as the given format.
// An empty string with a nil error means the file was readable but held no text.
func File(path string, format Format) (string, error) {
	switch format {
	case FormatPDF:
		return pdfText(path)
	case FormatDOCX:
		return docxText(path)
	case FormatTXT:
		return plainText(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrFileTypeNotAllowed, format)
	}
}

// pdfText concatenates every page in order with nothing between pages.
// The pdf reader panics on some malformed object streams; that becomes an error.
func pdfText(path string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("malformed pdf %s: %v", filepath.Base(path), rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			log.Printf("WARN: Skipping page %d of %s: %v", i, filepath.Base(path), pageErr)
			continue
		}
		b.WriteString(pageText)
	}
	return b.String(), nil
}

// plainText decodes UTF-8 and falls back to ISO-8859-1, which accepts every byte sequence.
func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s as latin-1: %w", filepath.Base(path), err)
	}
	log.Printf("INFO: %s is not valid UTF-8, decoded as ISO-8859-1", filepath.Base(path))
	return string(decoded), nil
}
