package rgbimage

import (
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/chewxy/math32"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"lumen/vmath/vec3"
)

const dataLayoutVersion = 1

const (
	maxHeaderLength = 1 << 16
	maxPixels       = 1 << 26
)

// ErrCorrupt is wrapped by ReadRGBImage errors caused by malformed input
// rather than a failing reader.
var ErrCorrupt = errors.New("corrupt image data")

// RGBImage accumulates radiance samples per pixel.  Row 0 is the top of the
// image.
type RGBImage struct {
	RowSize, ColSize int

	// ColorSums holds three channels per pixel, row-major.
	ColorSums    []float32
	SampleCounts []float32
}

type RGBImageSample struct {
	ColorSum    vec3.T
	SampleCount float32
}

func New(rowSize, colSize int) *RGBImage {
	im := &RGBImage{}
	im.Resize(rowSize, colSize)
	return im
}

func (s *RGBImage) Resize(rowSize, colSize int) {
	s.RowSize = rowSize
	s.ColSize = colSize

	s.ColorSums = make([]float32, rowSize*colSize*3)
	s.SampleCounts = make([]float32, rowSize*colSize)
}

func (s *RGBImage) RecordSample(r, c int, radiance vec3.T) {
	idx := r*s.ColSize + c
	s.ColorSums[3*idx+0] += radiance[0]
	s.ColorSums[3*idx+1] += radiance[1]
	s.ColorSums[3*idx+2] += radiance[2]
	s.SampleCounts[idx] += 1
}

func (s *RGBImage) ReadSample(r, c int) RGBImageSample {
	idx := r*s.ColSize + c
	return RGBImageSample{
		ColorSum:    vec3.T{s.ColorSums[3*idx+0], s.ColorSums[3*idx+1], s.ColorSums[3*idx+2]},
		SampleCount: s.SampleCounts[idx],
	}
}

// Mean returns the average radiance recorded at (r, c), or black if nothing
// was recorded.
func (s *RGBImage) Mean(r, c int) vec3.T {
	samp := s.ReadSample(r, c)
	if samp.SampleCount == 0 {
		return vec3.T{}
	}
	return vec3.DivVS(samp.ColorSum, samp.SampleCount)
}

// Resolve tone-maps the mean radiance at (r, c) with gamma 2 and quantizes it
// to 8 bits per channel.
func (s *RGBImage) Resolve(r, c int) [3]uint8 {
	mean := s.Mean(r, c)
	return [3]uint8{
		Quantize(math32.Sqrt(mean[0])),
		Quantize(math32.Sqrt(mean[1])),
		Quantize(math32.Sqrt(mean[2])),
	}
}

// Quantize maps a display-referred channel in [0, 1] to [0, 255], truncating
// 255.99*v.  Out-of-range and NaN inputs are clamped.
func Quantize(v float32) uint8 {
	q := 255.99 * v
	if !(q > 0) {
		return 0
	}
	if q >= 255 {
		return 255
	}
	return uint8(q)
}

// Image returns the resolved 8-bit image.
func (s *RGBImage) Image() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, s.ColSize, s.RowSize))
	for r := 0; r < s.RowSize; r++ {
		for c := 0; c < s.ColSize; c++ {
			px := s.Resolve(r, c)
			out.SetNRGBA(c, r, color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255})
		}
	}
	return out
}

func (s *RGBImage) Cut(rowSrc, rowLim, colSrc, colLim int) *RGBImage {
	dst := New(rowLim-rowSrc, colLim-colSrc)

	dstIndex := 0
	for r := rowSrc; r < rowLim; r++ {
		for c := colSrc; c < colLim; c++ {
			srcIndex := r*s.ColSize + c

			copy(dst.ColorSums[3*dstIndex:3*dstIndex+3], s.ColorSums[3*srcIndex:3*srcIndex+3])
			dst.SampleCounts[dstIndex] = s.SampleCounts[srcIndex]

			dstIndex++
		}
	}

	return dst
}

func (s *RGBImage) Paste(src *RGBImage, rowSrc, colSrc int) {
	rowLim := rowSrc + src.RowSize
	colLim := colSrc + src.ColSize

	for r := rowSrc; r < rowLim; r++ {
		for c := colSrc; c < colLim; c++ {
			dstIndex := r*s.ColSize + c
			srcIndex := (r-rowSrc)*src.ColSize + (c - colSrc)

			copy(s.ColorSums[3*dstIndex:3*dstIndex+3], src.ColorSums[3*srcIndex:3*srcIndex+3])
			s.SampleCounts[dstIndex] = src.SampleCounts[srcIndex]
		}
	}
}

func ReadRGBImage(in io.Reader) (*RGBImage, error) {
	var headerLength uint64
	if err := binary.Read(in, binary.LittleEndian, &headerLength); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}

	if headerLength > maxHeaderLength {
		return nil, fmt.Errorf("header length %d exceeds %d: %w", headerLength, maxHeaderLength, ErrCorrupt)
	}

	headerBytes := make([]byte, int(headerLength))
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header bytes: %w", err)
	}

	hdr := &structpb.Struct{}
	if err := proto.Unmarshal(headerBytes, hdr); err != nil {
		return nil, fmt.Errorf("while unmarshaling header: %v: %w", err, ErrCorrupt)
	}

	fields := hdr.GetFields()
	if v := fields["dataLayoutVersion"].GetNumberValue(); v != dataLayoutVersion {
		return nil, fmt.Errorf("bad data layout version %v: %w", v, ErrCorrupt)
	}

	rowSize, err := headerDimension(fields, "rowSize")
	if err != nil {
		return nil, err
	}
	colSize, err := headerDimension(fields, "colSize")
	if err != nil {
		return nil, err
	}
	if rowSize*colSize > maxPixels {
		return nil, fmt.Errorf("image size %dx%d exceeds %d pixels: %w", rowSize, colSize, maxPixels, ErrCorrupt)
	}

	im := New(rowSize, colSize)

	zipReader, err := zlib.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("while opening zip reader: %w", err)
	}
	defer zipReader.Close()

	if err := binary.Read(zipReader, binary.LittleEndian, im.ColorSums); err != nil {
		return nil, fmt.Errorf("while reading color sums: %w", err)
	}

	if err := binary.Read(zipReader, binary.LittleEndian, im.SampleCounts); err != nil {
		return nil, fmt.Errorf("while reading sample counts: %w", err)
	}

	return im, nil
}

// headerDimension reads a non-negative integer size no larger than maxPixels.
func headerDimension(fields map[string]*structpb.Value, key string) (int, error) {
	v := fields[key].GetNumberValue()
	if v < 0 || v > maxPixels || v != math.Trunc(v) {
		return 0, fmt.Errorf("bad %s %v: %w", key, v, ErrCorrupt)
	}
	return int(v), nil
}

func WriteRGBImage(im *RGBImage, w io.Writer) error {
	hdr, err := structpb.NewStruct(map[string]interface{}{
		"rowSize":           im.RowSize,
		"colSize":           im.ColSize,
		"dataLayoutVersion": dataLayoutVersion,
	})
	if err != nil {
		return fmt.Errorf("while building header: %w", err)
	}

	hdrBytes, err := proto.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	headerLengthBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(headerLengthBytes, uint64(len(hdrBytes)))
	if _, err := w.Write(headerLengthBytes); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(hdrBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	zipWriter := zlib.NewWriter(w)

	if err := binary.Write(zipWriter, binary.LittleEndian, im.ColorSums); err != nil {
		return fmt.Errorf("while writing color sums: %w", err)
	}

	if err := binary.Write(zipWriter, binary.LittleEndian, im.SampleCounts); err != nil {
		return fmt.Errorf("while writing sample counts: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("while closing zip writer: %w", err)
	}

	return nil
}
