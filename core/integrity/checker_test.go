package integrity

import (
	"encoding/binary"
	"testing"

	"gamedata-sync/core/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPNG() []byte {
	data := append([]byte{}, pngSignature...)
	data = append(data, []byte("....IHDR fake chunk data....")...)
	return append(data, pngTrailer...)
}

func riff(form string, body []byte) []byte {
	data := []byte("RIFF")
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(4+len(body)))
	data = append(data, size...)
	data = append(data, []byte(form)...)
	return append(data, body...)
}

func oggPages(lastFlags byte) []byte {
	page := func(flags byte) []byte {
		return append([]byte{'O', 'g', 'g', 'S', 0, flags}, []byte("payload")...)
	}
	data := page(0x02)
	data = append(data, page(0x00)...)
	return append(data, page(lastFlags)...)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatPNG, DetectFormat("UI/UI_AvatarIcon_Ayaka.PNG"))
	assert.Equal(t, FormatJPEG, DetectFormat("a.jpeg"))
	assert.Equal(t, FormatOGG, DetectFormat("voice/hello.ogg"))
	assert.Equal(t, FormatJSON, DetectFormat("ExcelBinOutput/WeaponExcelConfigData.json"))
	assert.Equal(t, FormatUnknown, DetectFormat("readme"))
}

func TestCheck(t *testing.T) {
	png := validPNG()

	tests := []struct {
		name   string
		format Format
		data   []byte
		ok     bool
	}{
		{"PNGValid", FormatPNG, png, true},
		{"PNGMissingTrailer", FormatPNG, png[:len(png)-4], false},
		{"PNGBadSignature", FormatPNG, append([]byte("XXXXXXXX"), pngTrailer...), false},
		{"JPEGValid", FormatJPEG, []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3, 0xff, 0xd9}, true},
		{"JPEGTruncated", FormatJPEG, []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}, false},
		{"GIFValid", FormatGIF, []byte("GIF89a....;"), true},
		{"GIFTruncated", FormatGIF, []byte("GIF89a...."), false},
		{"WebPValid", FormatWebP, riff("WEBP", []byte("VP8 data")), true},
		{"WebPTruncated", FormatWebP, riff("WEBP", []byte("VP8 data"))[:14], false},
		{"WAVValid", FormatWAV, riff("WAVE", []byte("fmt data")), true},
		{"WAVWrongForm", FormatWAV, riff("WEBP", []byte("fmt data")), false},
		{"OGGValid", FormatOGG, oggPages(0x04), true},
		{"OGGNoEOS", FormatOGG, oggPages(0x00), false},
		{"JSONObject", FormatJSON, []byte(" {\"a\": 1}\n"), true},
		{"JSONArray", FormatJSON, []byte("[1,2]"), true},
		{"JSONTruncated", FormatJSON, []byte("[{\"a\": 1},"), false},
		{"JSONNotContainer", FormatJSON, []byte("\"text\""), false},
		{"UnknownNonEmpty", FormatUnknown, []byte("x"), true},
		{"Empty", FormatPNG, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.format, tt.data)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ce *CorruptionError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestCheckNamed(t *testing.T) {
	png := validPNG()
	assert.NoError(t, CheckNamed("icon.png", png))

	err := CheckNamed("icon.png", png[:len(png)-1])
	require.Error(t, err)
	assert.True(t, retry.IsCategory(err, retry.CategoryIntegrity))
	assert.Contains(t, err.Error(), "icon.png")
	assert.Contains(t, err.Error(), "IEND")
}
