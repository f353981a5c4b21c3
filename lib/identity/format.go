// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"errors"
)

// ErrUnknownFormat reports an image payload with no recognized
// signature.
var ErrUnknownFormat = errors.New("unrecognized image format")

// signature matches one image format by its leading bytes.
type signature struct {
	format string
	match  func(header []byte) bool
}

func hasPrefix(prefix string) func([]byte) bool {
	return func(header []byte) bool { return bytes.HasPrefix(header, []byte(prefix)) }
}

// netpbm matches the P1-P6 portable anymap headers: a magic digit
// followed by whitespace.
func netpbm(digits string) func([]byte) bool {
	return func(header []byte) bool {
		return len(header) >= 3 && header[0] == 'P' &&
			bytes.IndexByte([]byte(digits), header[1]) >= 0 &&
			bytes.IndexByte([]byte(" \t\n\r"), header[2]) >= 0
	}
}

// signatures is checked in order; the first match wins.
var signatures = []signature{
	{"jpeg", func(header []byte) bool {
		if len(header) >= 10 {
			marker := header[6:10]
			if bytes.Equal(marker, []byte("JFIF")) || bytes.Equal(marker, []byte("Exif")) {
				return true
			}
		}
		return bytes.HasPrefix(header, []byte{0xff, 0xd8, 0xff})
	}},
	{"png", hasPrefix("\x89PNG\r\n\x1a\n")},
	{"gif", func(header []byte) bool {
		return bytes.HasPrefix(header, []byte("GIF87a")) || bytes.HasPrefix(header, []byte("GIF89a"))
	}},
	{"tiff", func(header []byte) bool {
		return bytes.HasPrefix(header, []byte("MM")) || bytes.HasPrefix(header, []byte("II"))
	}},
	{"rgb", hasPrefix("\x01\xda")},
	{"pbm", netpbm("14")},
	{"pgm", netpbm("25")},
	{"ppm", netpbm("36")},
	{"rast", hasPrefix("\x59\xa6\x6a\x95")},
	{"xbm", hasPrefix("#define ")},
	{"bmp", hasPrefix("BM")},
	{"webp", func(header []byte) bool {
		return len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP"))
	}},
	{"exr", hasPrefix("\x76\x2f\x31\x01")},
}

// sniff returns the format token for payload.
func sniff(payload []byte) (string, error) {
	header := payload
	if len(header) > 32 {
		header = header[:32]
	}
	for _, candidate := range signatures {
		if candidate.match(header) {
			return candidate.format, nil
		}
	}
	return "", ErrUnknownFormat
}

// PhotoExtension returns the lowercase format token ("jpeg", "png",
// ...) for a profile photo payload.
func PhotoExtension(photo []byte) (string, error) {
	return sniff(photo)
}

// ThumbnailExtension returns the lowercase format token for a
// thumbnail payload.
func ThumbnailExtension(thumbnail []byte) (string, error) {
	return sniff(thumbnail)
}
