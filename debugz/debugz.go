// Package debugz serves the renderer's health and progress over HTTP.
package debugz

import (
	"net/http"
	"sync/atomic"

	"github.com/golang/glog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Progress counts finished pixels.  It is safe for concurrent use.
type Progress struct {
	done  int64
	total int64
}

// Update matches scene.ProgressFunction.
func (p *Progress) Update(done, total int) {
	atomic.StoreInt64(&p.total, int64(total))
	atomic.StoreInt64(&p.done, int64(done))
}

func (p *Progress) Load() (done, total int) {
	return int(atomic.LoadInt64(&p.done)), int(atomic.LoadInt64(&p.total))
}

type HealthzHandler struct{}

func (h *HealthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("200 OK"))
}

type ProgressHandler struct {
	Progress *Progress
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	done, total := h.Progress.Load()

	st, err := structpb.NewStruct(map[string]interface{}{
		"done":  done,
		"total": total,
	})
	if err != nil {
		glog.Errorf("Error building progress response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := protojson.Marshal(st)
	if err != nil {
		glog.Errorf("Error marshaling progress response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// NewMux routes /healthz and /progress.
func NewMux(p *Progress) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", &HealthzHandler{})
	mux.Handle("/progress", &ProgressHandler{Progress: p})
	return mux
}
