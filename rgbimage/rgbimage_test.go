package rgbimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"lumen/vmath/vec3"
)

func TestQuantize(t *testing.T) {
	cases := []struct {
		in   float32
		want uint8
	}{
		{0, 0},
		{0.5, 127},
		{1, 255},
		{0.999, 255},
		{-0.3, 0},
		{7, 255},
		{math32.NaN(), 0},
		{math32.Inf(1), 255},
	}
	for _, tc := range cases {
		if got := Quantize(tc.in); got != tc.want {
			t.Errorf("Quantize(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestResolveAppliesGamma(t *testing.T) {
	im := New(1, 2)
	im.RecordSample(0, 0, vec3.T{0.25, 1, 0})
	im.RecordSample(0, 0, vec3.T{0.25, 1, 0})

	if diff := cmp.Diff(im.Resolve(0, 0), [3]uint8{127, 255, 0}); diff != "" {
		t.Errorf("Bad resolved pixel; diff (-got +want)\n%s", diff)
	}
	// No samples resolves to black rather than NaN.
	if diff := cmp.Diff(im.Resolve(0, 1), [3]uint8{0, 0, 0}); diff != "" {
		t.Errorf("Bad resolved empty pixel; diff (-got +want)\n%s", diff)
	}
}

func TestMeanAveragesSamples(t *testing.T) {
	im := New(2, 2)
	im.RecordSample(1, 1, vec3.T{1, 0, 0.5})
	im.RecordSample(1, 1, vec3.T{0, 0, 0.5})

	if diff := cmp.Diff(im.Mean(1, 1), vec3.T{0.5, 0, 0.5}); diff != "" {
		t.Errorf("Bad mean; diff (-got +want)\n%s", diff)
	}
}

func TestCutPasteRoundTrip(t *testing.T) {
	im := New(3, 4)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			im.RecordSample(r, c, vec3.T{float32(r), float32(c), float32(r * c)})
		}
	}

	band := im.Cut(1, 2, 0, 4)
	if band.RowSize != 1 || band.ColSize != 4 {
		t.Fatalf("Bad band size; got %dx%d, want 1x4", band.RowSize, band.ColSize)
	}
	if diff := cmp.Diff(band.ReadSample(0, 3), RGBImageSample{ColorSum: vec3.T{1, 3, 3}, SampleCount: 1}); diff != "" {
		t.Errorf("Bad cut sample; diff (-got +want)\n%s", diff)
	}

	dst := New(3, 4)
	dst.Paste(band, 1, 0)
	if diff := cmp.Diff(dst.Cut(1, 2, 0, 4), band); diff != "" {
		t.Errorf("Pasted band doesn't match; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(dst.ReadSample(0, 0), RGBImageSample{}); diff != "" {
		t.Errorf("Paste touched a row outside the band; diff (-got +want)\n%s", diff)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	im := New(2, 3)
	im.RecordSample(0, 0, vec3.T{0.1, 0.2, 0.3})
	im.RecordSample(1, 2, vec3.T{4, 5, 6})
	im.RecordSample(1, 2, vec3.T{1, 1, 1})

	buf := &bytes.Buffer{}
	if err := WriteRGBImage(im, buf); err != nil {
		t.Fatalf("Unexpected error writing image: %v", err)
	}

	got, err := ReadRGBImage(buf)
	if err != nil {
		t.Fatalf("Unexpected error reading image: %v", err)
	}
	if diff := cmp.Diff(got, im); diff != "" {
		t.Errorf("Bad decoded image; diff (-got +want)\n%s", diff)
	}
}

func TestReadRejectsTruncatedInput(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteRGBImage(New(4, 4), buf); err != nil {
		t.Fatalf("Unexpected error writing image: %v", err)
	}

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()/2])
	if _, err := ReadRGBImage(truncated); err == nil {
		t.Errorf("Expected an error reading a truncated image")
	}
}

// encodedHeader returns a length-prefixed header and no pixel data.
func encodedHeader(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	hdr, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("Unexpected error building header: %v", err)
	}
	hdrBytes, err := proto.Marshal(hdr)
	if err != nil {
		t.Fatalf("Unexpected error marshaling header: %v", err)
	}
	out := make([]byte, 8, 8+len(hdrBytes))
	binary.LittleEndian.PutUint64(out, uint64(len(hdrBytes)))
	return append(out, hdrBytes...)
}

func TestReadRejectsCorruptHeader(t *testing.T) {
	hugeLength := make([]byte, 8)
	binary.LittleEndian.PutUint64(hugeLength, 1<<62)

	garbage := make([]byte, 8, 12)
	binary.LittleEndian.PutUint64(garbage, 4)
	garbage = append(garbage, 0xff, 0xff, 0xff, 0xff)

	cases := []struct {
		name string
		in   []byte
	}{
		{"huge header length", hugeLength},
		{"unparseable header", garbage},
		{"wrong version", encodedHeader(t, map[string]interface{}{"rowSize": 1, "colSize": 1, "dataLayoutVersion": 7})},
		{"negative rows", encodedHeader(t, map[string]interface{}{"rowSize": -1, "colSize": 4, "dataLayoutVersion": 1})},
		{"negative cols", encodedHeader(t, map[string]interface{}{"rowSize": 1, "colSize": -4, "dataLayoutVersion": 1})},
		{"fractional rows", encodedHeader(t, map[string]interface{}{"rowSize": 1.5, "colSize": 4, "dataLayoutVersion": 1})},
		{"too many pixels", encodedHeader(t, map[string]interface{}{"rowSize": 1 << 20, "colSize": 1 << 20, "dataLayoutVersion": 1})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadRGBImage(bytes.NewReader(tc.in))
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Expected an ErrCorrupt error, got %v", err)
			}
		})
	}
}

func TestImageMatchesResolve(t *testing.T) {
	im := New(2, 1)
	im.RecordSample(0, 0, vec3.T{1, 1, 1})

	out := im.Image()
	if got := out.Bounds().Dx(); got != 1 {
		t.Errorf("Bad image width; got %d, want 1", got)
	}
	if got := out.Bounds().Dy(); got != 2 {
		t.Errorf("Bad image height; got %d, want 2", got)
	}
	px := out.NRGBAAt(0, 0)
	if px.R != 255 || px.G != 255 || px.B != 255 || px.A != 255 {
		t.Errorf("Bad top pixel; got %+v, want white", px)
	}
	px = out.NRGBAAt(0, 1)
	if px.R != 0 || px.A != 255 {
		t.Errorf("Bad bottom pixel; got %+v, want opaque black", px)
	}
}
