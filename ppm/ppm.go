// Package ppm writes images in the plain-text PPM (P3) format.
package ppm

import (
	"bufio"
	"fmt"
	"io"

	"lumen/rgbimage"
)

const MaxColorValue = 255

// Write encodes im as P3: a "P3", "<cols> <rows>", "255" header followed by one
// "r g b" line per pixel, top row first.
func Write(w io.Writer, im *rgbimage.RGBImage) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "P3\n%d %d\n%d\n", im.ColSize, im.RowSize, MaxColorValue); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	for r := 0; r < im.RowSize; r++ {
		for c := 0; c < im.ColSize; c++ {
			px := im.Resolve(r, c)
			if _, err := fmt.Fprintf(bw, "%d %d %d\n", px[0], px[1], px[2]); err != nil {
				return fmt.Errorf("while writing pixel (%d, %d): %w", r, c, err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("while flushing: %w", err)
	}

	return nil
}
