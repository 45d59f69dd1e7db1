package ppm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lumen/rgbimage"
	"lumen/vmath/vec3"
)

func TestWrite(t *testing.T) {
	im := rgbimage.New(2, 3)
	im.RecordSample(0, 0, vec3.T{1, 1, 1})
	im.RecordSample(0, 1, vec3.T{0.25, 0, 1})
	im.RecordSample(1, 2, vec3.T{0, 1, 0})

	buf := &bytes.Buffer{}
	if err := Write(buf, im); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := strings.Join([]string{
		"P3",
		"3 2",
		"255",
		"255 255 255",
		"127 0 255",
		"0 0 0",
		"0 0 0",
		"0 0 0",
		"0 255 0",
		"",
	}, "\n")
	if diff := cmp.Diff(buf.String(), want); diff != "" {
		t.Errorf("Bad PPM; diff (-got +want)\n%s", diff)
	}
}

func TestWriteLineCount(t *testing.T) {
	im := rgbimage.New(40, 80)

	buf := &bytes.Buffer{}
	if err := Write(buf, im); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if got, want := len(lines), 3+40*80; got != want {
		t.Errorf("Bad line count; got %d, want %d", got, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestWriteReportsWriterErrors(t *testing.T) {
	if err := Write(failingWriter{}, rgbimage.New(1, 1)); err == nil {
		t.Errorf("Expected an error from a failing writer")
	}
}
