package heatmap

import (
	"encoding/binary"
	"math"
	"testing"
)

// record appends a framed record to the dump under construction.
func record(dump []byte, typ uint16, payload []byte) []byte {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], typ)
	binary.LittleEndian.PutUint32(hdr[2:], uint32(len(payload)))
	return append(append(dump, hdr[:]...), payload...)
}

func dimPayload(w, h, zMin, zMax uint8) []byte {
	return []byte{h, w, 0, uint8(h - 1), 0, uint8(w - 1), zMin, zMax}
}

func TestDecodeSingleFrame(t *testing.T) {
	payload := make([]byte, 6*4)
	for i := range payload {
		payload[i] = 110
	}
	payload[0] = 10  // -> 1.0
	payload[1] = 210 // -> 0.0

	var dump []byte
	dump = record(dump, RecordHeatmapDim, dimPayload(6, 4, 10, 210))
	dump = record(dump, RecordHeatmap, payload)

	frames, err := Decode(dump)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	f := frames[0]
	if f.W != 6 || f.H != 4 {
		t.Fatalf("frame shape %dx%d, want 6x4", f.W, f.H)
	}

	if v := f.Pix[0]; math.Abs(float64(v)-1) > 1e-6 {
		t.Errorf("z_min byte: got %v, want 1", v)
	}
	if v := f.Pix[1]; math.Abs(float64(v)) > 1e-6 {
		t.Errorf("z_max byte: got %v, want 0", v)
	}
	if v := f.Pix[2]; math.Abs(float64(v)-0.5) > 1e-6 {
		t.Errorf("mid byte: got %v, want 0.5", v)
	}
}

func TestDecodeSkipsUnknownRecords(t *testing.T) {
	var dump []byte
	dump = record(dump, 7, []byte{1, 2, 3, 4, 5})
	dump = record(dump, RecordHeatmapDim, dimPayload(2, 2, 0, 255))
	dump = record(dump, 9, nil)
	dump = record(dump, RecordHeatmap, []byte{0, 255, 128, 64})

	frames, err := Decode(dump)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
}

func TestDecodeMultipleFramesAndRelatch(t *testing.T) {
	var dump []byte
	dump = record(dump, RecordHeatmapDim, dimPayload(2, 2, 0, 255))
	dump = record(dump, RecordHeatmap, []byte{0, 0, 0, 0})
	dump = record(dump, RecordHeatmap, []byte{255, 255, 255, 255})
	dump = record(dump, RecordHeatmapDim, dimPayload(3, 1, 0, 255))
	dump = record(dump, RecordHeatmap, []byte{1, 2, 3})

	frames, err := Decode(dump)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[0].W != 2 || frames[2].W != 3 {
		t.Errorf("dimension latch broken: %dx%d, %dx%d",
			frames[0].W, frames[0].H, frames[2].W, frames[2].H)
	}
}

func TestDecodeDropsHeatmapWithoutDim(t *testing.T) {
	var dump []byte
	dump = record(dump, RecordHeatmap, []byte{1, 2, 3, 4})

	frames, err := Decode(dump)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("frame decoded without a dimension record")
	}
}

func TestDecodeDropsMismatchedPayload(t *testing.T) {
	var dump []byte
	dump = record(dump, RecordHeatmapDim, dimPayload(4, 4, 0, 255))
	dump = record(dump, RecordHeatmap, []byte{1, 2, 3}) // 3 != 16

	frames, err := Decode(dump)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("mismatched payload decoded as frame")
	}
}

func TestParseTruncated(t *testing.T) {
	var dump []byte
	dump = record(dump, RecordHeatmapDim, dimPayload(2, 2, 0, 255))

	if _, err := Decode(dump[:len(dump)-2]); err == nil {
		t.Error("truncated payload: expected error")
	}
	if _, err := Decode(dump[:3]); err == nil {
		t.Error("truncated header: expected error")
	}
}

func TestDecodeDegenerateRange(t *testing.T) {
	// z_min == z_max must not divide by zero.
	var dump []byte
	dump = record(dump, RecordHeatmapDim, dimPayload(2, 1, 128, 128))
	dump = record(dump, RecordHeatmap, []byte{128, 128})

	frames, err := Decode(dump)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	for _, v := range frames[0].Pix {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Errorf("degenerate intensity range produced %v", v)
		}
	}
}
