package debugz

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHealthz(t *testing.T) {
	server := httptest.NewServer(NewMux(&Progress{}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Unexpected error reading body: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(body) != "200 OK" {
		t.Errorf("Bad response; got %d %q, want 200 %q", resp.StatusCode, body, "200 OK")
	}
}

func TestProgress(t *testing.T) {
	p := &Progress{}
	p.Update(120, 480)

	server := httptest.NewServer(NewMux(p))
	defer server.Close()

	resp, err := http.Get(server.URL + "/progress")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Bad content type; got %q", got)
	}

	got := map[string]float64{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Unexpected error decoding body: %v", err)
	}
	want := map[string]float64{"done": 120, "total": 480}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad progress; diff (-got +want)\n%s", diff)
	}
}

func TestProgressLoad(t *testing.T) {
	p := &Progress{}
	p.Update(3, 9)
	done, total := p.Load()
	if done != 3 || total != 9 {
		t.Errorf("Bad progress; got %d/%d, want 3/9", done, total)
	}
}
