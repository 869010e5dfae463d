package logparse

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// legacyEncodings maps the small set of 8-bit encodings old CVS
// repositories tend to embed in author names and log bodies (spec.md
// §4.1 doesn't mandate UTF-8 input) to their golang.org/x/text codec,
// grounded on liudonghua123-reposurgeon/surgeon's use of
// golang.org/x/text/encoding for repository content normalization.
var legacyEncodings = map[string]encoding.Encoding{
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"koi8-r":       charmap.KOI8R,
	"windows-1252": charmap.Windows1252,
}

// WrapLegacyEncoding returns r transcoded from the named 8-bit
// encoding to UTF-8, so Parse never sees invalid UTF-8 byte sequences
// in author names or log bodies. An empty name returns r unchanged.
func WrapLegacyEncoding(r io.Reader, name string) (io.Reader, error) {
	if name == "" {
		return r, nil
	}
	enc, ok := legacyEncodings[name]
	if !ok {
		return nil, fmt.Errorf("unsupported legacy log encoding %q", name)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
