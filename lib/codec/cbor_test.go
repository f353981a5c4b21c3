// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func sampleAttributes() map[string][][]byte {
	return map[string][][]byte{
		"name":           {[]byte("alice@example.com")},
		"uidnumber":      {[]byte("1001")},
		"jpegphoto":      {{0x89, 'P', 'N', 'G', 0x00}},
		"memberof":       {[]byte("cn=a"), []byte("cn=b")},
		"objectcategory": {[]byte("user")},
	}
}

func TestAttributeMapRoundtrip(t *testing.T) {
	data, err := Marshal(sampleAttributes())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string][][]byte
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, sampleAttributes()) {
		t.Errorf("roundtrip mismatch: got %q", decoded)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	// Go randomizes map iteration, so repeated encodes of freshly
	// built maps exercise key sorting.
	first, err := Marshal(sampleAttributes())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(sampleAttributes())
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"a": [], "a": []}
	data := []byte{0xa2, 0x61, 'a', 0x80, 0x61, 'a', 0x80}
	var decoded map[string][][]byte
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatalf("Unmarshal accepted duplicate keys: %q", decoded)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string][][]byte{"name": {[]byte("alice")}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	text, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(text, `"name"`) || !strings.Contains(text, "h'616c696365'") {
		t.Errorf("Diagnose = %s", text)
	}
}
