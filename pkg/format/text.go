package format

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText turns artifact bytes into a string. A UTF-8 or UTF-16 byte order mark
// selects the decoding and is dropped. Anything else is decoded as UTF-8.
func DecodeText(content []byte) string {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, content)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}
