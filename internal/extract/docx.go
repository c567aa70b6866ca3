package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readDocx pulls the text runs out of word/document.xml, one paragraph per block,
// discarding all formatting.
func readDocx(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()
	return docxText(&r.Reader)
}

func docxText(r *zip.Reader) (string, error) {
	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var paragraphs []string
	// Text boxes put whole paragraphs inside a run of the enclosing one, so open
	// paragraphs form a stack. An inner paragraph becomes its own block.
	var open []*strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		var current *strings.Builder
		if len(open) > 0 {
			current = open[len(open)-1]
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Fallback", "pPr", "rPr":
				// mc:Fallback repeats the mc:Choice content; property blocks hold tab stops, not text
				if err := decoder.Skip(); err != nil {
					return "", fmt.Errorf("parse document.xml: %w", err)
				}
			case "p":
				open = append(open, &strings.Builder{})
				inText = false
			case "t":
				inText = current != nil
			case "tab":
				if current != nil {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if current != nil {
					current.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText && current != nil {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if current != nil {
					open = open[:len(open)-1]
					if text := strings.TrimSpace(current.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
				}
			}
		}
	}

	return strings.Join(paragraphs, "\n\n"), nil
}
