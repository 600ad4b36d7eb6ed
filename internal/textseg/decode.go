package textseg

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FallbackCharset decodes non-UTF-8 uploads that carry no charset hint.
// GB18030 is a superset of GBK and GB2312.
const FallbackCharset = "gb18030"

// DecodeManuscript converts an uploaded text file to NFC-normalized UTF-8.
//
// Valid UTF-8 is used as is. Otherwise the encoding comes from a BOM or the
// charset parameter of contentType, and failing both from FallbackCharset.
func DecodeManuscript(data []byte, contentType string) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) && !hasUTF16BOM(data) {
		return norm.NFC.String(string(data)), nil
	}

	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if !certain {
		enc, name = charset.Lookup(FallbackCharset)
	}
	if enc == nil {
		return "", fmt.Errorf("no decoder for charset %q", name)
	}

	decoded, err := decodeAll(enc, data)
	if err != nil {
		return "", fmt.Errorf("decode manuscript as %s: %w", name, err)
	}
	decoded = bytes.TrimPrefix(decoded, utf8BOM)
	return norm.NFC.String(string(decoded)), nil
}

func decodeAll(enc encoding.Encoding, data []byte) ([]byte, error) {
	return io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(data)))
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}
