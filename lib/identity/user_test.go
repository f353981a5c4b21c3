// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"testing"
	"time"
)

var (
	pngPayload  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegPayload = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
)

func TestPhotoFilename(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		want    string
		wantErr error
	}{
		{"png", User{Name: "alice", Photo: pngPayload}, "photo.png", nil},
		{"jpeg", User{Name: "alice", Photo: jpegPayload}, "photo.jpeg", nil},
		{"absent", User{Name: "alice"}, "", ErrNotFound},
		{"empty", User{Name: "alice", Photo: []byte{}}, "", ErrNotFound},
		{"unknown", User{Name: "alice", Photo: []byte("plain text")}, "", ErrUnknownFormat},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := PhotoFilename(test.user)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("PhotoFilename() error = %v, want %v", err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("PhotoFilename() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestThumbnailFilename(t *testing.T) {
	got, err := ThumbnailFilename(User{Thumbnail: []byte("GIF89a\x01\x00")})
	if err != nil {
		t.Fatalf("ThumbnailFilename: %v", err)
	}
	if got != "thumbnail.gif" {
		t.Errorf("ThumbnailFilename() = %q, want thumbnail.gif", got)
	}

	if _, err := ThumbnailFilename(User{Photo: pngPayload}); !errors.Is(err, ErrNotFound) {
		t.Errorf("ThumbnailFilename without thumbnail: error = %v, want ErrNotFound", err)
	}
}

func TestSniffFormats(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"\xff\xd8\xff\xdb\x00\x43", "jpeg"},
		{"\x00\x00\x00\x00\x00\x00Exif\x00\x00", "jpeg"},
		{"\x89PNG\r\n\x1a\n", "png"},
		{"GIF87a", "gif"},
		{"MM\x00*", "tiff"},
		{"II*\x00", "tiff"},
		{"\x01\xda\x01\x01", "rgb"},
		{"P1\n1 1\n1", "pbm"},
		{"P5 2 2 255", "pgm"},
		{"P6\t1 1 255", "ppm"},
		{"\x59\xa6\x6a\x95", "rast"},
		{"#define x_width 1", "xbm"},
		{"BM\x36\x00", "bmp"},
		{"RIFF\x24\x00\x00\x00WEBPVP8 ", "webp"},
		{"\x76\x2f\x31\x01\x02", "exr"},
	}
	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			got, err := PhotoExtension([]byte(test.payload))
			if err != nil {
				t.Fatalf("PhotoExtension(%q): %v", test.payload, err)
			}
			if got != test.want {
				t.Errorf("PhotoExtension(%q) = %q, want %q", test.payload, got, test.want)
			}
		})
	}
}

func TestSniffRejectsShortAndUnknown(t *testing.T) {
	for _, payload := range []string{"", "P", "P7 x", "RIFF\x00\x00\x00\x00WAVE", "hello"} {
		if format, err := ThumbnailExtension([]byte(payload)); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("ThumbnailExtension(%q) = %q, %v; want ErrUnknownFormat", payload, format, err)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, time.January, 31, 9, 30, 0, 0, time.UTC).Unix()
	tests := []struct {
		value string
		want  int64
	}{
		{"20240131093000Z", want},
		{"20240131093000.0Z", want},
		{" 20240131093000Z ", want},
		{"20240131103000+0100", want},
		{"", 0},
		{"yesterday", 0},
		{"20241331093000Z", 0},
	}
	for _, test := range tests {
		if got := ParseTimestamp(test.value); got != test.want {
			t.Errorf("ParseTimestamp(%q) = %d, want %d", test.value, got, test.want)
		}
	}
}

func TestValidSegment(t *testing.T) {
	valid := []string{"alice@example.com", "users", "sudoers.txt", "a b"}
	invalid := []string{"", ".", "..", "a/b", "nul\x00"}
	for _, name := range valid {
		if !ValidSegment(name) {
			t.Errorf("ValidSegment(%q) = false, want true", name)
		}
	}
	for _, name := range invalid {
		if ValidSegment(name) {
			t.Errorf("ValidSegment(%q) = true, want false", name)
		}
	}
}

func TestSudoerSetRender(t *testing.T) {
	tests := []struct {
		name string
		set  SudoerSet
		want string
	}{
		{"two", SudoerSet{"carol", "dave"}, "carol\ndave\n"},
		{"duplicates", SudoerSet{"carol", "carol"}, "carol\ncarol\n"},
		{"empty", nil, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := string(test.set.Render()); got != test.want {
				t.Errorf("Render() = %q, want %q", got, test.want)
			}
		})
	}
}
