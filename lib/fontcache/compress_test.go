// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontcache

import (
	"crypto/rand"
	"testing"
)

func TestCompressionTagString(t *testing.T) {
	tests := []struct {
		tag  CompressionTag
		want string
	}{
		{CompressionNone, "none"},
		{CompressionLZ4, "lz4"},
		{CompressionZstd, "zstd"},
		{CompressionTag(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.tag.String()
			if got != tt.want {
				t.Errorf("CompressionTag(%d).String() = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParseCompressionTag(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		t.Run(name, func(t *testing.T) {
			tag, err := ParseCompressionTag(name)
			if err != nil {
				t.Fatalf("ParseCompressionTag(%q) failed: %v", name, err)
			}
			if tag.String() != name {
				t.Errorf("roundtrip: ParseCompressionTag(%q).String() = %q", name, tag.String())
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseCompressionTag("gzip")
		if err == nil {
			t.Error("ParseCompressionTag(\"gzip\") should fail")
		}
	})
}

func TestCompressDecompressNone(t *testing.T) {
	data := []byte("uncompressed data should pass through unchanged")

	compressed, err := CompressPayload(data, CompressionNone)
	if err != nil {
		t.Fatalf("CompressPayload(none) failed: %v", err)
	}

	// For CompressionNone, the compressed output should be the same slice.
	if &compressed[0] != &data[0] {
		t.Error("CompressionNone should return the same slice, not a copy")
	}

	decompressed, err := DecompressPayload(compressed, CompressionNone, len(data))
	if err != nil {
		t.Fatalf("DecompressPayload(none) failed: %v", err)
	}

	if string(decompressed) != string(data) {
		t.Error("none compression roundtrip failed")
	}
}

func TestCompressDecompressNoneSizeMismatch(t *testing.T) {
	data := []byte("five bytes extra")

	_, err := DecompressPayload(data, CompressionNone, len(data)+5)
	if err == nil {
		t.Error("DecompressPayload(none) should fail when size does not match")
	}
}

func TestCompressDecompressLZ4(t *testing.T) {
	// Compressible data: repeated pattern.
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}

	compressed, err := CompressPayload(data, CompressionLZ4)
	if err != nil {
		t.Fatalf("CompressPayload(lz4) failed: %v", err)
	}

	if len(compressed) >= len(data) {
		t.Errorf("LZ4 did not compress: %d bytes → %d bytes", len(data), len(compressed))
	}

	decompressed, err := DecompressPayload(compressed, CompressionLZ4, len(data))
	if err != nil {
		t.Fatalf("DecompressPayload(lz4) failed: %v", err)
	}

	for i := range data {
		if decompressed[i] != data[i] {
			t.Fatalf("LZ4 roundtrip mismatch at byte %d", i)
		}
	}
}

func TestCompressDecompressZstd(t *testing.T) {
	// Text-like data: a fill list fragment.
	data := []byte(`{"codepoint":"U+4E00","rank":1,"sources":["noto/cjk/SansHK.ufc"]}`)
	repeated := make([]byte, 0, 64*1024)
	for len(repeated) < 64*1024 {
		repeated = append(repeated, data...)
	}

	compressed, err := CompressPayload(repeated, CompressionZstd)
	if err != nil {
		t.Fatalf("CompressPayload(zstd) failed: %v", err)
	}

	if len(compressed) >= len(repeated) {
		t.Errorf("Zstd did not compress: %d bytes → %d bytes", len(repeated), len(compressed))
	}

	decompressed, err := DecompressPayload(compressed, CompressionZstd, len(repeated))
	if err != nil {
		t.Fatalf("DecompressPayload(zstd) failed: %v", err)
	}

	for i := range repeated {
		if decompressed[i] != repeated[i] {
			t.Fatalf("Zstd roundtrip mismatch at byte %d", i)
		}
	}
}

func TestCompressIncompressible(t *testing.T) {
	// Random data is incompressible for both algorithms.
	data := make([]byte, 64*1024)
	rand.Read(data)

	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			_, err := CompressPayload(data, tag)
			if err == nil {
				t.Fatalf("%s should return incompressible error for random data", tag)
			}
			if !IsIncompressible(err) {
				t.Errorf("expected incompressible error, got: %v", err)
			}
		})
	}
}

func TestSelectCompressionKnownTypes(t *testing.T) {
	for _, contentType := range []string{"text/plain", "application/json", "application/yaml"} {
		tag := SelectCompression(nil, contentType)
		if tag != CompressionZstd {
			t.Errorf("SelectCompression(contentType=%q) = %s, want zstd", contentType, tag)
		}
	}
}

func TestSelectCompressionProbe(t *testing.T) {
	// Highly compressible data: should select zstd.
	compressible := make([]byte, 64*1024)
	for i := range compressible {
		compressible[i] = byte(i % 5)
	}
	tag := SelectCompression(compressible, "")
	if tag != CompressionZstd {
		t.Errorf("SelectCompression(compressible) = %s, want zstd", tag)
	}

	// Random data: should select none.
	random := make([]byte, 64*1024)
	rand.Read(random)
	tag = SelectCompression(random, "")
	if tag != CompressionNone {
		t.Errorf("SelectCompression(random) = %s, want none", tag)
	}
}

func TestSelectCompressionEmpty(t *testing.T) {
	tag := SelectCompression(nil, "")
	if tag != CompressionNone {
		t.Errorf("SelectCompression(empty) = %s, want none", tag)
	}
}

func TestCompressPayloadAutoFallback(t *testing.T) {
	// Random data: CompressPayloadAuto should fall back to CompressionNone.
	data := make([]byte, 64*1024)
	rand.Read(data)

	compressed, tag, err := CompressPayloadAuto(data, "")
	if err != nil {
		t.Fatalf("CompressPayloadAuto failed: %v", err)
	}

	if tag != CompressionNone {
		t.Errorf("tag = %s, want none for random data", tag)
	}

	if len(compressed) != len(data) {
		t.Errorf("compressed size %d != original %d for none", len(compressed), len(data))
	}
}

func TestCompressPayloadUnsupportedTag(t *testing.T) {
	if _, err := CompressPayload([]byte("data"), CompressionTag(99)); err == nil {
		t.Error("CompressPayload with unknown tag should fail")
	}
	if _, err := DecompressPayload([]byte("data"), CompressionTag(99), 4); err == nil {
		t.Error("DecompressPayload with unknown tag should fail")
	}
}

func BenchmarkCompressZstd(b *testing.B) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		CompressPayload(data, CompressionZstd)
	}
}

func BenchmarkDecompressLZ4(b *testing.B) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}
	compressed, err := CompressPayload(data, CompressionLZ4)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		DecompressPayload(compressed, CompressionLZ4, len(data))
	}
}
