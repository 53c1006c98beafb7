// Package heatmap parses vendor binary touch dumps into normalised
// floating-point frames.
package heatmap

import (
	"encoding/binary"
	"fmt"
	"os"

	img "touch-tracer/internal/image"
)

// Record types carried by the dump. Unknown types are skipped by size.
const (
	RecordHeatmapDim = 3
	RecordHeatmap    = 4
)

// headerSize is the fixed record header: type (u16) and payload size (u32),
// little endian.
const headerSize = 6

// Dim describes the active heatmap geometry and intensity range.
type Dim struct {
	Height uint8
	Width  uint8
	YMin   uint8
	YMax   uint8
	XMin   uint8
	XMax   uint8
	ZMin   uint8
	ZMax   uint8
}

// Handler receives parsed records. A dimension record latches the geometry
// for all following heatmap payloads.
type Handler interface {
	HeatmapDim(dim Dim)
	Heatmap(data []byte)
}

// Parse walks the record stream and forwards dimension descriptors and
// heatmap payloads to the handler. It fails on truncated records.
func Parse(data []byte, h Handler) error {
	offset := 0

	for offset < len(data) {
		if len(data)-offset < headerSize {
			return fmt.Errorf("heatmap: truncated record header at offset %d", offset)
		}

		typ := binary.LittleEndian.Uint16(data[offset:])
		size := int(binary.LittleEndian.Uint32(data[offset+2:]))
		offset += headerSize

		if len(data)-offset < size {
			return fmt.Errorf("heatmap: truncated record payload at offset %d: need %d bytes, have %d",
				offset, size, len(data)-offset)
		}
		payload := data[offset : offset+size]
		offset += size

		switch typ {
		case RecordHeatmapDim:
			if size < 8 {
				return fmt.Errorf("heatmap: dimension record too short: %d bytes", size)
			}
			h.HeatmapDim(Dim{
				Height: payload[0], Width: payload[1],
				YMin: payload[2], YMax: payload[3],
				XMin: payload[4], XMax: payload[5],
				ZMin: payload[6], ZMax: payload[7],
			})

		case RecordHeatmap:
			h.Heatmap(payload)
		}
	}

	return nil
}

// Decoder collects heatmap frames, normalising each payload byte v to
// 1 - (v - zMin)/(zMax - zMin) into a freshly owned float32 image of the
// latched dimension. Payloads that arrive before a dimension record or
// whose size does not match the latched geometry are dropped.
type Decoder struct {
	dim    Dim
	hasDim bool
	Frames []*img.Image[float32]
}

// HeatmapDim latches the active dimension.
func (d *Decoder) HeatmapDim(dim Dim) {
	d.dim = dim
	d.hasDim = true
}

// Heatmap decodes one payload into a new frame.
func (d *Decoder) Heatmap(data []byte) {
	w, h := int(d.dim.Width), int(d.dim.Height)
	if !d.hasDim || len(data) != w*h {
		return
	}

	zMin := float32(d.dim.ZMin)
	zRange := float32(d.dim.ZMax) - zMin
	if zRange <= 0 {
		zRange = 1
	}

	frame := img.New[float32](w, h)
	for i, v := range data {
		frame.Pix[i] = 1 - (float32(v)-zMin)/zRange
	}

	d.Frames = append(d.Frames, frame)
}

// Decode parses a full dump into its normalised frames.
func Decode(data []byte) ([]*img.Image[float32], error) {
	var dec Decoder
	if err := Parse(data, &dec); err != nil {
		return nil, err
	}
	return dec.Frames, nil
}

// ReadFile loads and decodes a dump file.
func ReadFile(path string) ([]*img.Image[float32], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}

	frames, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return frames, nil
}
