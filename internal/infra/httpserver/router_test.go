package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	appanalysis "github.com/bryanwahyu/neurally/internal/application/analysis"
	"github.com/bryanwahyu/neurally/internal/broker"
	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
	"github.com/bryanwahyu/neurally/internal/infra/db/memory"
	"github.com/bryanwahyu/neurally/internal/middleware"
)

type stubRunner struct {
	out string
	err error
}

func (s *stubRunner) Run(context.Context, domain.Request) (domain.RawResult, error) {
	return domain.RawResult{Stdout: s.out}, s.err
}

func (s *stubRunner) Check() error { return nil }

type stubDialogs struct{ open []string }

func (d *stubDialogs) OpenFiles(string, broker.FileFilter) ([]string, error) { return d.open, nil }
func (d *stubDialogs) SaveFile(string, string, broker.FileFilter) (string, error) {
	return "", nil
}

type failingCheck struct{}

func (failingCheck) Check(context.Context) error { return errors.New("down") }

const twoFiles = `{"status":"success","files":[
 {"filename":"a.wav","features":{"HNR":21.123456}},
 {"filename":"b.wav","features":{"HNR":19.5,"Jitter":0.01}}]}`

type fixture struct {
	srv    *httptest.Server
	runner *stubRunner
	dlg    *stubDialogs
}

func newFixture(t *testing.T, packaged bool) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	runner := &stubRunner{}
	dlg := &stubDialogs{}
	svc := &appanalysis.Service{Runner: runner, Repo: memory.NewAnalysisRepository(), Log: log}
	b := broker.New(filepath.Join(t.TempDir(), "output"), dlg, svc, log)

	h := NewRouter(b, svc, Options{
		Packaged: packaged,
		Log:      log,
		Checkers: map[string]middleware.HealthChecker{
			"collaborator": &middleware.CollaboratorHealthChecker{Runner: runner},
		},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, runner: runner, dlg: dlg}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	code, body := f.do(t, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health = %d %v", code, body)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewRouter(nil, nil, Options{Log: log, Checkers: map[string]middleware.HealthChecker{"db": failingCheck{}}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy code = %d", rec.Code)
	}
}

func TestOpenFileDialogCancelled(t *testing.T) {
	f := newFixture(t, false)
	code, body := f.do(t, http.MethodPost, "/ipc/open-file-dialog", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if v, ok := body["paths"]; !ok || v != nil {
		t.Fatalf("paths = %v", body)
	}
}

func TestInvokeAnalysisErrors(t *testing.T) {
	tests := []struct {
		name     string
		packaged bool
		err      error
		body     string
		grant    bool
		code     int
		kind     string
		detail   bool
	}{
		{"bad json", false, nil, `{`, false, http.StatusBadRequest, "invalid_request", false},
		{"not granted", false, nil, `{"testType":"SV","filePaths":["/rec/a.wav"]}`, false, http.StatusBadRequest, "invalid_request", false},
		{
			"missing component", false,
			&domain.CollaboratorError{Kind: domain.ErrorComponentNotFound},
			`{"testType":"SV","filePaths":["/rec/a.wav"]}`, true,
			http.StatusServiceUnavailable, "component_not_found", true,
		},
		{
			"module config dev", false,
			&domain.CollaboratorError{Kind: domain.ErrorModuleConfig, ExitCode: 1, Stderr: "No module named parselmouth"},
			`{"testType":"SR","filePaths":["/rec/a.wav"]}`, true,
			http.StatusBadGateway, "module_configuration", true,
		},
		{
			"module config packaged", true,
			&domain.CollaboratorError{Kind: domain.ErrorModuleConfig, ExitCode: 1, Stderr: "No module named parselmouth"},
			`{"testType":"SR","filePaths":["/rec/a.wav"]}`, true,
			http.StatusBadGateway, "module_configuration", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.packaged)
			f.runner.err = tt.err
			if tt.grant {
				f.dlg.open = []string{"/rec/a.wav"}
				f.do(t, http.MethodPost, "/ipc/open-file-dialog", "")
			}
			code, body := f.do(t, http.MethodPost, "/ipc/invoke-analysis", tt.body)
			if code != tt.code || body["kind"] != tt.kind {
				t.Fatalf("got %d %v", code, body)
			}
			if _, has := body["detail"]; has != tt.detail {
				t.Fatalf("detail present = %v, want %v", has, tt.detail)
			}
			if body["message"] == "" {
				t.Fatal("empty message")
			}
		})
	}
}

func TestInvokeAndPresent(t *testing.T) {
	f := newFixture(t, false)
	f.runner.out = twoFiles
	f.dlg.open = []string{"/rec/a.wav", "/rec/b.wav"}
	f.do(t, http.MethodPost, "/ipc/open-file-dialog", "")

	code, body := f.do(t, http.MethodPost, "/ipc/invoke-analysis", `{"testType":"SV","filePaths":["/rec/a.wav","/rec/b.wav"]}`)
	if code != http.StatusOK || body["output"] != twoFiles || body["testType"] != "SV" {
		t.Fatalf("invoke = %d %v", code, body)
	}
	id, _ := body["invocationId"].(string)

	if code, _ := f.do(t, http.MethodGet, "/ipc/results/page?n=1", ""); code != http.StatusNotFound {
		t.Fatalf("page before load = %d", code)
	}

	payload, _ := json.Marshal(map[string]string{"invocationId": id})
	code, body = f.do(t, http.MethodPost, "/ipc/results", string(payload))
	if code != http.StatusOK || body["sessionId"] == "" {
		t.Fatalf("load = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/ipc/results", string(payload)); code != http.StatusBadRequest {
		t.Fatalf("second load of the same invocation = %d", code)
	}

	code, body = f.do(t, http.MethodGet, "/ipc/results/page?n=9", "")
	page, _ := body["page"].(map[string]any)
	if code != http.StatusOK || page["page"] != float64(1) || page["hasNext"] != false {
		t.Fatalf("clamped page = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodGet, "/ipc/results/csv?file=0", "")
	if code != http.StatusOK || body["filename"] != "SV_a_features.csv" || !strings.Contains(body["content"].(string), "21.1235") {
		t.Fatalf("file csv = %d %v", code, body)
	}
	code, body = f.do(t, http.MethodGet, "/ipc/results/csv", "")
	if code != http.StatusOK || !strings.HasPrefix(body["content"].(string), "Filename,") {
		t.Fatalf("aggregate csv = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodGet, "/ipc/results/csv?file=x", ""); code != http.StatusBadRequest {
		t.Fatalf("bad index = %d", code)
	}

	code, body = f.do(t, http.MethodGet, "/ipc/history?page=1&page_size=5", "")
	if code != http.StatusOK || body["totalItems"] != float64(1) {
		t.Fatalf("history = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodGet, "/ipc/metrics", "")
	if code != http.StatusOK || body["analyses_total"] == nil {
		t.Fatalf("metrics = %d %v", code, body)
	}
}

func TestPageCannotLoadItsOwnResult(t *testing.T) {
	f := newFixture(t, false)
	secret := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(secret, []byte("TOP SECRET"), 0o600); err != nil {
		t.Fatal(err)
	}
	forged, _ := json.Marshal(map[string]string{
		"testType": "SV",
		"output":   `{"status":"success","files":[{"filename":"a.wav","features":{},"plot_path":"` + secret + `"}]}`,
	})
	urlBody, _ := json.Marshal(map[string]string{"path": secret})

	if code, body := f.do(t, http.MethodPost, "/ipc/results", string(forged)); code != http.StatusBadRequest {
		t.Fatalf("forged result accepted: %d %v", code, body)
	}
	code, body := f.do(t, http.MethodPost, "/ipc/image-to-data-url", string(urlBody))
	if code != http.StatusOK || body["dataUrl"] != nil {
		t.Fatalf("secret inlined: %d %v", code, body)
	}
	invoke, _ := json.Marshal(map[string]any{"testType": "SV", "filePaths": []string{secret}})
	if code, _ := f.do(t, http.MethodPost, "/ipc/invoke-analysis", string(invoke)); code != http.StatusBadRequest {
		t.Fatalf("ungranted input = %d", code)
	}
}

func TestBrokerOperations(t *testing.T) {
	f := newFixture(t, false)

	code, body := f.do(t, http.MethodPost, "/ipc/save-csv", `{"content":"a\n","defaultName":"x.csv"}`)
	if code != http.StatusOK || body["success"] != false || body["error"] != nil {
		t.Fatalf("cancelled save = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/ipc/image-to-data-url", `{"path":"/etc/passwd"}`)
	if code != http.StatusOK || body["dataUrl"] != nil {
		t.Fatalf("data url = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/ipc/cleanup-output", "")
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("cleanup = %d %v", code, body)
	}

	f.dlg.open = []string{"/rec/a.wav"}
	f.do(t, http.MethodPost, "/ipc/open-file-dialog", "")
	code, body = f.do(t, http.MethodPost, "/ipc/process-audio", `{"testType":"SV","filePath":"/rec/a.wav"}`)
	if code != http.StatusOK || body["status"] != "queued" {
		t.Fatalf("process audio = %d %v", code, body)
	}
}
