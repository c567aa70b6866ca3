package extract

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
)

// Word 97-2003 binary layout offsets (MS-DOC 2.5.1 FIB).
const (
	fibIdent         = 0xA5EC
	fibFlagsOffset   = 0x000A
	fibWhichTblStm   = 0x0200
	fibFcClxOffset   = 0x01A2
	fibLcbClxOffset  = 0x01A6
	clxPrc           = 0x01
	clxPcdt          = 0x02
	pcdSize          = 8
	fcCompressedFlag = 0x40000000
)

// readWordDoc extracts text from an application/msword upload. Browsers commonly
// label .docx files with this type too, so a ZIP payload is routed to the docx reader.
func readWordDoc(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}
	if bytes.Equal(head, []byte("PK\x03\x04")) {
		zr, err := zip.NewReader(f, info.Size())
		if err != nil {
			return "", fmt.Errorf("open zip: %w", err)
		}
		return docxText(zr)
	}

	doc, err := mscfb.New(f)
	if err != nil {
		return "", fmt.Errorf("open compound file: %w", err)
	}
	streams := map[string][]byte{}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			b, rerr := io.ReadAll(entry)
			if rerr != nil {
				return "", fmt.Errorf("read %s stream: %w", entry.Name, rerr)
			}
			streams[entry.Name] = b
		}
	}
	return wordDocText(streams)
}

// wordDocText walks the piece table (CLX) to rebuild the document text.
func wordDocText(streams map[string][]byte) (string, error) {
	wd := streams["WordDocument"]
	if len(wd) < fibLcbClxOffset+4 {
		return "", errors.New("WordDocument stream missing or truncated")
	}
	if binary.LittleEndian.Uint16(wd[0:2]) != fibIdent {
		return "", errors.New("not a Word 97-2003 document")
	}

	tableName := "0Table"
	if binary.LittleEndian.Uint16(wd[fibFlagsOffset:])&fibWhichTblStm != 0 {
		tableName = "1Table"
	}
	table := streams[tableName]
	fcClx := binary.LittleEndian.Uint32(wd[fibFcClxOffset:])
	lcbClx := binary.LittleEndian.Uint32(wd[fibLcbClxOffset:])
	if lcbClx == 0 || uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return "", fmt.Errorf("piece table out of range in %s", tableName)
	}
	clx := table[fcClx : fcClx+lcbClx]

	// Skip any Prc blocks preceding the Pcdt.
	pos := 0
	for pos < len(clx) && clx[pos] == clxPrc {
		if pos+3 > len(clx) {
			return "", errors.New("truncated Prc")
		}
		size := int(int16(binary.LittleEndian.Uint16(clx[pos+1:])))
		pos += 3 + size
	}
	if pos+5 > len(clx) || clx[pos] != clxPcdt {
		return "", errors.New("Pcdt not found")
	}
	lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
	plc := clx[pos+5:]
	if lcb > len(plc) || lcb < 4 {
		return "", errors.New("truncated PlcPcd")
	}
	plc = plc[:lcb]

	n := (lcb - 4) / (4 + pcdSize)
	cps := make([]uint32, n+1)
	for i := 0; i <= n; i++ {
		cps[i] = binary.LittleEndian.Uint32(plc[i*4:])
	}
	pcds := plc[(n+1)*4:]

	var sb strings.Builder
	win1252 := charmap.Windows1252.NewDecoder()
	for i := 0; i < n; i++ {
		if cps[i+1] < cps[i] {
			return "", errors.New("piece table CPs not ascending")
		}
		count := int(cps[i+1] - cps[i])
		fc := binary.LittleEndian.Uint32(pcds[i*pcdSize+2:])
		if fc&fcCompressedFlag != 0 {
			off := int(fc&^fcCompressedFlag) / 2
			if off+count > len(wd) {
				return "", errors.New("compressed piece out of range")
			}
			dec, err := win1252.Bytes(wd[off : off+count])
			if err != nil {
				return "", err
			}
			sb.Write(dec)
		} else {
			off := int(fc)
			if off+2*count > len(wd) {
				return "", errors.New("unicode piece out of range")
			}
			u := make([]uint16, count)
			for j := range u {
				u[j] = binary.LittleEndian.Uint16(wd[off+2*j:])
			}
			sb.WriteString(string(utf16.Decode(u)))
		}
	}
	return cleanWordControlChars(sb.String()), nil
}

// cleanWordControlChars maps Word's in-band control characters to plain text and
// drops field codes (the instruction between 0x13 and 0x14).
func cleanWordControlChars(s string) string {
	var sb strings.Builder
	fieldDepth := 0
	inInstruction := false
	for _, r := range s {
		switch r {
		case 0x13:
			fieldDepth++
			inInstruction = true
			continue
		case 0x14:
			inInstruction = false
			continue
		case 0x15:
			if fieldDepth > 0 {
				fieldDepth--
			}
			inInstruction = false
			continue
		}
		if inInstruction {
			continue
		}
		switch r {
		case '\r', 0x0B, 0x0C:
			sb.WriteByte('\n')
		case 0x07:
			sb.WriteByte('\t')
		case '\t', '\n':
			sb.WriteRune(r)
		default:
			if r >= 0x20 {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}
