package compression

import (
	"bytes"
	"testing"
)

func signedByte(v int8) byte { return byte(v) }

func TestRLECompressEmpty(t *testing.T) {
	if got := RLECompress(nil); got != nil {
		t.Errorf("RLECompress(nil) = %v, want nil", got)
	}
	if got := RLECompress([]byte{}); got != nil {
		t.Errorf("RLECompress([]byte{}) = %v, want nil", got)
	}
}

func TestRLECompressRunOfRepeatedDepthBytes(t *testing.T) {
	// A byte-run of identical depth bytes is exactly what WireEnvelopeRLE
	// targets: the background of a z-buffer composite often packages as
	// long identical byte stretches even after the pixel codec's own
	// run-length pass.
	data := []byte{42, 42, 42, 42, 42}
	compressed := RLECompress(data)
	want := []byte{signedByte(-4), 42}
	if !bytes.Equal(compressed, want) {
		t.Errorf("RLECompress(run) = %v, want %v", compressed, want)
	}
}

func TestRLECompressLiteralColorBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	compressed := RLECompress(data)
	want := []byte{3, 1, 2, 3, 4}
	if !bytes.Equal(compressed, want) {
		t.Errorf("RLECompress(literals) = %v, want %v", compressed, want)
	}
}

func TestRLERoundTripMixedRunsAndLiterals(t *testing.T) {
	tests := [][]byte{
		{1},
		{1, 2, 3, 4, 5},
		{100, 100, 100, 100, 100, 100, 100, 100},
		{1, 2, 3, 3, 3, 3, 4, 5, 6},
		{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3},
		{1, 2, 3, 100, 100, 100, 100, 4, 5},
	}
	for i, original := range tests {
		compressed := RLECompress(original)
		decompressed, err := RLEDecompress(compressed, len(original))
		if err != nil {
			t.Errorf("test %d: RLEDecompress: %v", i, err)
			continue
		}
		if !bytes.Equal(decompressed, original) {
			t.Errorf("test %d: round trip got %v, want %v", i, decompressed, original)
		}

		dst := make([]byte, len(original))
		if err := RLEDecompressTo(compressed, dst); err != nil {
			t.Errorf("test %d: RLEDecompressTo: %v", i, err)
			continue
		}
		if !bytes.Equal(dst, original) {
			t.Errorf("test %d: RLEDecompressTo got %v, want %v", i, dst, original)
		}
	}
}

func TestRLERoundTripSparseImageLikeRunRatio(t *testing.T) {
	// 30% long background runs, 70% distinct per-pixel depth values,
	// roughly the shape of a z-buffer composite's packaged bytes near a
	// silhouette edge.
	data := make([]byte, 4096)
	for i := range data {
		if i%100 < 30 {
			data[i] = 0
		} else {
			data[i] = byte(i * 17)
		}
	}
	compressed := RLECompress(data)
	decompressed, err := RLEDecompress(compressed, len(data))
	if err != nil {
		t.Fatalf("RLEDecompress: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("round trip over sparse-image-shaped data failed")
	}
	t.Logf("compression ratio: %d -> %d (%.1f%%)", len(data), len(compressed), 100.0*float64(len(compressed))/float64(len(data)))
}

func TestRLERunLongerThanMaxRunLength(t *testing.T) {
	data := make([]byte, 200)
	for i := range data {
		data[i] = 42
	}
	compressed := RLECompress(data)
	decompressed, err := RLEDecompress(compressed, len(data))
	if err != nil {
		t.Fatalf("RLEDecompress: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("round trip over a run longer than rleMaxRunLength failed")
	}
}

func TestRLEDecompressEmpty(t *testing.T) {
	if result, err := RLEDecompress(nil, 0); err != nil || result != nil {
		t.Errorf("RLEDecompress(nil, 0) = %v, %v, want nil, nil", result, err)
	}
	if _, err := RLEDecompress(nil, 10); err != ErrRLECorrupted {
		t.Errorf("RLEDecompress(nil, 10) = %v, want ErrRLECorrupted", err)
	}
}

func TestRLEDecompressErrors(t *testing.T) {
	if _, err := RLEDecompress([]byte{signedByte(-4), 42}, 10); err == nil {
		t.Error("wrong expectedSize should error")
	}
	if _, err := RLEDecompress([]byte{signedByte(-4)}, 5); err != ErrRLECorrupted {
		t.Errorf("truncated run = %v, want ErrRLECorrupted", err)
	}
	if _, err := RLEDecompress([]byte{3, 1, 2}, 4); err != ErrRLECorrupted {
		t.Errorf("truncated literals = %v, want ErrRLECorrupted", err)
	}
	if _, err := RLEDecompress([]byte{signedByte(-126), 42}, 10); err != ErrRLEOverflow {
		t.Errorf("overflow = %v, want ErrRLEOverflow", err)
	}
}

func TestRLEDecompressToRejectsUndersizedBuffer(t *testing.T) {
	// A caller sizing its receive buffer from the envelope's declared
	// rawLen should get ErrRLEOverflow, not a silent truncated write,
	// if the declared length disagrees with the actual run.
	if err := RLEDecompressTo([]byte{signedByte(-4), 42}, make([]byte, 3)); err != ErrRLEOverflow {
		t.Errorf("undersized dst for a run = %v, want ErrRLEOverflow", err)
	}
	if err := RLEDecompressTo([]byte{3, 1, 2, 3, 4}, make([]byte, 2)); err != ErrRLEOverflow {
		t.Errorf("undersized dst for literals = %v, want ErrRLEOverflow", err)
	}
}

func BenchmarkRLECompress(b *testing.B) {
	data := make([]byte, 4096)
	for i := range data {
		if i%10 < 5 {
			data[i] = 0
		} else {
			data[i] = byte(i)
		}
	}
	b.ResetTimer()
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		RLECompress(data)
	}
}

func BenchmarkRLEDecompress(b *testing.B) {
	data := make([]byte, 4096)
	for i := range data {
		if i%10 < 5 {
			data[i] = 0
		} else {
			data[i] = byte(i)
		}
	}
	compressed := RLECompress(data)
	b.ResetTimer()
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		RLEDecompress(compressed, len(data))
	}
}
