package extract

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// readPDF extracts text per page in page order. Fragments within a page are joined
// by a single space, pages by a newline.
func readPDF(path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", 0, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]string, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			return "", ctx.PageCount, fmt.Errorf("page %d content: %w", pageNr, err)
		}
		var data []byte
		if r != nil {
			if data, err = io.ReadAll(r); err != nil {
				return "", ctx.PageCount, fmt.Errorf("page %d read: %w", pageNr, err)
			}
		}
		pages = append(pages, strings.Join(contentStreamFragments(data), " "))
	}
	return strings.Join(pages, "\n"), ctx.PageCount, nil
}

// contentStreamFragments tokenizes a page content stream and returns the strings
// shown by the text operators Tj, TJ, ' and ". A TJ array is one fragment.
func contentStreamFragments(data []byte) []string {
	var frags []string
	var operands []string // string operands seen since the last operator
	var array []string
	inArray := false

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteralString(data[i:])
			i += n
			if inArray {
				array = append(array, s)
			} else {
				operands = append(operands, s)
			}
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i = skipDict(data, i)
		case c == '<':
			s, n := readHexString(data[i:])
			i += n
			if inArray {
				array = append(array, s)
			} else {
				operands = append(operands, s)
			}
		case c == '[':
			inArray = true
			array = array[:0]
			i++
		case c == ']':
			inArray = false
			operands = append(operands, strings.Join(array, ""))
			i++
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelim(data[i]) {
				i++
			}
			if i == start {
				i++ // stray delimiter
				continue
			}
			tok := string(data[start:i])
			if isOperator(tok) {
				switch tok {
				case "Tj", "TJ", "'", "\"":
					if len(operands) > 0 {
						if s := cleanFragment(operands[len(operands)-1]); s != "" {
							frags = append(frags, s)
						}
					}
				}
				operands = operands[:0]
			}
		}
	}
	return frags
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// isOperator treats any bare token that is not a number or name as an operator.
func isOperator(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	if c == '/' || c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
		return false
	}
	return tok != "true" && tok != "false" && tok != "null"
}

// readLiteralString decodes a (...) string starting at b[0] and returns it with
// the number of bytes consumed.
func readLiteralString(b []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c == '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
			i++
		case c == ')':
			depth--
			i++
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		case c == '\\' && i+1 < len(b):
			i++
			switch e := b[i]; e {
			case 'n':
				sb.WriteByte('\n')
				i++
			case 'r':
				sb.WriteByte('\r')
				i++
			case 't':
				sb.WriteByte('\t')
				i++
			case 'b', 'f':
				i++
			case '\r', '\n':
				// line continuation
				i++
				if e == '\r' && i < len(b) && b[i] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					val := 0
					for k := 0; k < 3 && i < len(b) && b[i] >= '0' && b[i] <= '7'; k++ {
						val = val*8 + int(b[i]-'0')
						i++
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
					i++
				}
			}
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

func readHexString(b []byte) (string, int) {
	var out []byte
	var hi byte
	haveHi := false
	i := 1
	for ; i < len(b) && b[i] != '>'; i++ {
		v, ok := hexVal(b[i])
		if !ok {
			continue
		}
		if haveHi {
			out = append(out, hi<<4|v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	if i < len(b) {
		i++
	}
	return string(out), i
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func skipDict(data []byte, i int) int {
	depth := 0
	for i < len(data) {
		if i+1 < len(data) && data[i] == '<' && data[i+1] == '<' {
			depth++
			i += 2
			continue
		}
		if i+1 < len(data) && data[i] == '>' && data[i+1] == '>' {
			depth--
			i += 2
			if depth == 0 {
				return i
			}
			continue
		}
		i++
	}
	return i
}

// cleanFragment drops non-printable bytes (glyph ids from CID fonts) and collapses whitespace.
func cleanFragment(s string) string {
	if !utf8.ValidString(s) {
		if dec, err := charmap.Windows1252.NewDecoder().String(s); err == nil {
			s = dec
		}
	}
	var sb strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			sb.WriteByte(' ')
			continue
		}
		if r >= 0x20 && r != 0x7f && r != 0xFFFD {
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
