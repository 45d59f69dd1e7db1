// Package sink opens the destinations a finished render can be written to.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/golang/glog"
	googleopt "google.golang.org/api/option"
)

const gcsScheme = "gs://"

// Destination is a parsed output location.
type Destination struct {
	// Exactly one of these is set.
	Stdout bool
	Path   string
	Bucket string

	Object string
}

// Parse interprets dest as "-" (standard output), "gs://bucket/object", or a
// local file path.
func Parse(dest string) (Destination, error) {
	switch {
	case dest == "":
		return Destination{}, fmt.Errorf("empty output destination")
	case dest == "-":
		return Destination{Stdout: true}, nil
	case strings.HasPrefix(dest, gcsScheme):
		rest := strings.TrimPrefix(dest, gcsScheme)
		slash := strings.Index(rest, "/")
		if slash <= 0 || slash == len(rest)-1 {
			return Destination{}, fmt.Errorf("output %q must have the form gs://bucket/object", dest)
		}
		return Destination{Bucket: rest[:slash], Object: rest[slash+1:]}, nil
	}
	return Destination{Path: dest}, nil
}

func (d Destination) String() string {
	switch {
	case d.Stdout:
		return "-"
	case d.Bucket != "":
		return gcsScheme + d.Bucket + "/" + d.Object
	}
	return d.Path
}

// Output is an open destination.  Close commits what was written; Abort
// discards it.  Exactly one of them must be called.
type Output struct {
	io.Writer

	commit  func() error
	discard func()
}

func (o *Output) Close() error {
	return o.commit()
}

// Abort drops the output: a local file is removed and a Cloud Storage upload is
// canceled before the object is created.  Standard output can't be taken back.
func (o *Output) Abort() {
	o.discard()
}

// Open returns an Output for d.
func Open(ctx context.Context, d Destination, contentType string) (*Output, error) {
	glog.V(1).Infof("Opening output %s", d)

	switch {
	case d.Stdout:
		return &Output{
			Writer:  os.Stdout,
			commit:  func() error { return nil },
			discard: func() {},
		}, nil
	case d.Bucket != "":
		return openGCS(ctx, d, contentType)
	}

	f, err := os.Create(d.Path)
	if err != nil {
		return nil, fmt.Errorf("while creating output file %q: %w", d.Path, err)
	}
	return &Output{
		Writer: f,
		commit: f.Close,
		discard: func() {
			f.Close()
			if err := os.Remove(d.Path); err != nil {
				glog.Warningf("Failed to remove partial output %s: %v", d.Path, err)
			}
		},
	}, nil
}

func openGCS(ctx context.Context, d Destination, contentType string) (*Output, error) {
	client, err := storage.NewClient(ctx, googleopt.WithUserAgent("lumen"))
	if err != nil {
		return nil, fmt.Errorf("while creating GCS client: %w", err)
	}

	// Canceling the writer's context abandons the upload; the object is only
	// created by a successful Close.
	uploadCtx, cancel := context.WithCancel(ctx)
	w := client.Bucket(d.Bucket).Object(d.Object).NewWriter(uploadCtx)
	w.ContentType = contentType

	return &Output{
		Writer: w,
		commit: func() error {
			defer client.Close()
			defer cancel()
			if err := w.Close(); err != nil {
				return fmt.Errorf("while finalizing GCS object: %w", err)
			}
			return nil
		},
		discard: func() {
			defer client.Close()
			cancel()
			w.Close()
		},
	}, nil
}
