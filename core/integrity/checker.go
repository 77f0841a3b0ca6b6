package integrity

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path"
	"strings"

	"gamedata-sync/core/retry"
)

// Format identifies a payload format.
type Format string

const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatWAV     Format = "wav"
	FormatOGG     Format = "ogg"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	pngTrailer   = []byte{0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xae, 0x42, 0x60, 0x82}
	jpegHead     = []byte{0xff, 0xd8, 0xff}
	jpegTrailer  = []byte{0xff, 0xd9}
	oggCapture   = []byte("OggS")
)

// oggEOS is the end-of-stream bit of an OGG page header type.
const oggEOS = 0x04

// CorruptionError reports a payload that failed its structural check.
type CorruptionError struct {
	Name   string
	Format Format
	Reason string
}

func (e *CorruptionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("corrupted %s payload %s: %s", e.Format, e.Name, e.Reason)
	}
	return fmt.Sprintf("corrupted %s payload: %s", e.Format, e.Reason)
}

// DetectFormat derives the format from a file name extension.
func DetectFormat(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return FormatPNG
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".gif":
		return FormatGIF
	case ".webp":
		return FormatWebP
	case ".wav":
		return FormatWAV
	case ".ogg":
		return FormatOGG
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// Check validates data against the structural markers of its format.
func Check(format Format, data []byte) error {
	if len(data) == 0 {
		return &CorruptionError{Format: format, Reason: "empty payload"}
	}

	var reason string
	switch format {
	case FormatPNG:
		reason = checkPNG(data)
	case FormatJPEG:
		reason = checkJPEG(data)
	case FormatGIF:
		reason = checkGIF(data)
	case FormatWebP:
		reason = checkRIFF(data, "WEBP")
	case FormatWAV:
		reason = checkRIFF(data, "WAVE")
	case FormatOGG:
		reason = checkOGG(data)
	case FormatJSON:
		reason = checkJSON(data)
	}

	if reason != "" {
		return &CorruptionError{Format: format, Reason: reason}
	}
	return nil
}

// CheckNamed detects the format of name and validates data. The returned error is
// categorised as retry.CategoryIntegrity.
func CheckNamed(name string, data []byte) error {
	if err := Check(DetectFormat(name), data); err != nil {
		ce := err.(*CorruptionError)
		ce.Name = name
		return retry.New(retry.CategoryIntegrity, "verify "+name, ce)
	}
	return nil
}

func checkPNG(data []byte) string {
	if !bytes.HasPrefix(data, pngSignature) {
		return "missing PNG signature"
	}
	if !bytes.HasSuffix(data, pngTrailer) {
		return "missing IEND trailer"
	}
	return ""
}

func checkJPEG(data []byte) string {
	if !bytes.HasPrefix(data, jpegHead) {
		return "missing SOI marker"
	}
	if !bytes.HasSuffix(data, jpegTrailer) {
		return "missing EOI marker"
	}
	return ""
}

func checkGIF(data []byte) string {
	if !bytes.HasPrefix(data, []byte("GIF87a")) && !bytes.HasPrefix(data, []byte("GIF89a")) {
		return "missing GIF header"
	}
	if data[len(data)-1] != 0x3b {
		return "missing GIF trailer"
	}
	return ""
}

func checkRIFF(data []byte, form string) string {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != form {
		return "missing RIFF/" + form + " header"
	}
	declared := binary.LittleEndian.Uint32(data[4:8])
	if uint64(declared)+8 != uint64(len(data)) {
		return fmt.Sprintf("RIFF size %d does not match payload length %d", declared+8, len(data))
	}
	return ""
}

func checkOGG(data []byte) string {
	if !bytes.HasPrefix(data, oggCapture) {
		return "missing OggS capture pattern"
	}
	last := bytes.LastIndex(data, oggCapture)
	// header type follows the 4-byte pattern and the version byte
	if last+5 >= len(data) {
		return "truncated final page"
	}
	if data[last+5]&oggEOS == 0 {
		return "final page is not flagged end-of-stream"
	}
	return ""
}

func checkJSON(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	// UTF-8 BOM is tolerated
	trimmed = bytes.TrimPrefix(trimmed, []byte{0xef, 0xbb, 0xbf})
	if len(trimmed) < 2 {
		return "payload too short"
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	switch {
	case first == '{' && last == '}':
		return ""
	case first == '[' && last == ']':
		return ""
	case first != '{' && first != '[':
		return "payload does not start with an object or array"
	default:
		return "payload is truncated"
	}
}
