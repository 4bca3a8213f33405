package voiceclone

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New accepted an empty base URL")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	c, err := New("http://localhost:8000/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.BaseURL(); got != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want trimmed", got)
	}
}

func TestUpload_SendsMultipartForm(t *testing.T) {
	t.Parallel()

	var gotProfile, gotFilename, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			t.Errorf("path = %q, want /upload", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		gotProfile = r.FormValue("profile")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		data, _ := io.ReadAll(file)
		gotContent = string(data)

		json.NewEncoder(w).Encode(UploadResult{
			Filename:  header.Filename,
			SavedPath: "/data/raw/" + header.Filename,
		})
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	result, err := c.Upload(context.Background(), "alice", "/tmp/sample.wav", strings.NewReader("fake audio"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if gotProfile != "alice" {
		t.Errorf("profile field = %q, want alice", gotProfile)
	}
	if gotFilename != "sample.wav" {
		t.Errorf("file name = %q, want base name sample.wav", gotFilename)
	}
	if gotContent != "fake audio" {
		t.Errorf("file content = %q", gotContent)
	}
	if result.SavedPath != "/data/raw/sample.wav" {
		t.Errorf("SavedPath = %q", result.SavedPath)
	}
}

func TestUpload_RequiresProfile(t *testing.T) {
	t.Parallel()

	c, _ := New("http://localhost:8000")
	if _, err := c.Upload(context.Background(), "", "f.wav", strings.NewReader("x")); err == nil {
		t.Fatal("Upload accepted an empty profile")
	}
}

func TestUpload_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.Upload(context.Background(), "alice", "f.wav", strings.NewReader("x"))

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusInternalServerError || se.Endpoint != "/upload" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestTrain_SendsFullRequestBody(t *testing.T) {
	t.Parallel()

	var got TrainRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/train" {
			t.Errorf("path = %q, want /train", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		io.WriteString(w, "epoch 1/5\nepoch 2/5\n")
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	body, err := c.Train(context.Background(), TrainRequest{
		Profile:         "alice",
		BatchSize:       16,
		Epochs:          5,
		AutoSelectEpoch: true,
		SelectUseWER:    true,
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "epoch 2/5") {
		t.Errorf("progress stream = %q", data)
	}

	if got.Profile != "alice" || got.BatchSize != 16 || got.Epochs != 5 {
		t.Errorf("decoded request = %+v", got)
	}
	if !got.AutoSelectEpoch || !got.SelectUseWER {
		t.Errorf("boolean tunables lost: %+v", got)
	}
}

func TestStream_ReturnsBodyOn200Only(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req StreamRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Speaker != "alice" || req.Text != "hello" {
			t.Errorf("stream request = %+v", req)
		}
		io.WriteString(w, `{"event":"done"}`+"\n")
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	body, err := c.Stream(context.Background(), StreamRequest{Speaker: "alice", Text: "hello"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	body.Close()
}

func TestStream_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.Stream(context.Background(), StreamRequest{Speaker: "a", Text: "b"})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", se.Status)
	}
}

func TestProfiles_DecodesInventory(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profiles" {
			t.Errorf("path = %q, want /profiles", r.URL.Path)
		}
		io.WriteString(w, `{"profiles":[
			{"name":"alice","has_data":true,"raw_files":3,"processed_wavs":120,
			 "has_profile":true,"best_checkpoint":"ckpt/alice/best.pt","latest_checkpoint":"ckpt/alice/last.pt"},
			{"name":"bob","has_data":false,"raw_files":0,"processed_wavs":0,
			 "has_profile":false,"best_checkpoint":"","latest_checkpoint":""}
		]}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	profiles, err := c.Profiles(context.Background())
	if err != nil {
		t.Fatalf("Profiles: %v", err)
	}

	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}
	alice := profiles[0]
	if alice.Name != "alice" || !alice.HasData || alice.RawFiles != 3 || alice.ProcessedWavs != 120 {
		t.Errorf("alice = %+v", alice)
	}
	if alice.BestCheckpoint != "ckpt/alice/best.pt" {
		t.Errorf("BestCheckpoint = %q", alice.BestCheckpoint)
	}
	if profiles[1].HasData {
		t.Error("bob should have no data")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs" {
			t.Errorf("path = %q, want /docs", r.URL.Path)
		}
		io.WriteString(w, "<html>docs</html>")
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestPing_Down(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded against a 503")
	}
}

func TestPreprocess_StreamsProgress(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req PreprocessRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Profile != "alice" || req.Filename != "sample.wav" {
			t.Errorf("preprocess request = %+v", req)
		}
		io.WriteString(w, "Segmenting...\nWrote 42 clips\n")
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	body, err := c.Preprocess(context.Background(), PreprocessRequest{Profile: "alice", Filename: "sample.wav"})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "42 clips") {
		t.Errorf("progress = %q", data)
	}
}
