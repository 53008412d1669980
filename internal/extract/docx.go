package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const docxBodyPart = "word/document.xml"

// docxText joins the text of every body paragraph with a single space.
// Paragraphs inside tables are not part of the body paragraph list and are skipped.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s in %s: %w", docxBodyPart, filepath.Base(path), err)
		}
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		return strings.Join(paragraphs, " "), nil
	}
	return "", fmt.Errorf("%s has no %s", filepath.Base(path), docxBodyPart)
}

func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		paraDepth  int // text-box paragraphs nest inside body paragraphs
		inText     bool
		tableDepth int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		inPara := paraDepth > 0 && tableDepth == 0
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "p":
				if tableDepth == 0 {
					if paraDepth == 0 {
						current.Reset()
					}
					paraDepth++
				}
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "p":
				if inPara {
					paraDepth--
					if paraDepth == 0 {
						paragraphs = append(paragraphs, current.String())
					} else {
						current.WriteByte(' ')
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
