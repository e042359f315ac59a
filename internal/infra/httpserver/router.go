package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appanalysis "github.com/bryanwahyu/neurally/internal/application/analysis"
	"github.com/bryanwahyu/neurally/internal/broker"
	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
	"github.com/bryanwahyu/neurally/internal/middleware"
)

// Options for NewRouter.
type Options struct {
	// Packaged hides technical detail (stderr, raw errors) from error bodies.
	Packaged bool
	Log      *logrus.Logger
	Checkers map[string]middleware.HealthChecker
}

type Router struct {
	broker   *broker.Broker
	results  *appanalysis.Service
	packaged bool
	log      *logrus.Logger
}

// NewRouter builds the IPC surface served to the window through the asset
// server.
func NewRouter(b *broker.Broker, svc *appanalysis.Service, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Router{broker: b, results: svc, packaged: opts.Packaged, log: log}

	mux := chi.NewRouter()
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))

	mux.Route("/ipc", func(rt chi.Router) {
		rt.Post("/open-file-dialog", r.wrap(r.handleOpenFileDialog))
		rt.Post("/invoke-analysis", r.wrap(r.handleInvokeAnalysis))
		rt.Post("/process-audio", r.wrap(r.handleProcessAudio))
		rt.Post("/save-csv", r.wrap(r.handleSaveCSV))
		rt.Post("/save-image", r.wrap(r.handleSaveImage))
		rt.Post("/image-to-data-url", r.wrap(r.handleImageToDataURL))
		rt.Post("/cleanup-output", r.wrap(r.handleCleanupOutput))

		rt.Post("/results", r.wrap(r.handleLoadResults))
		rt.Get("/results/page", r.wrap(r.handleResultsPage))
		rt.Get("/results/csv", r.wrap(r.handleResultsCSV))

		rt.Get("/history", r.wrap(r.handleHistory))
		rt.Get("/metrics", middleware.MetricsHandler)
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, body := r.classify(err)
			if status >= http.StatusInternalServerError {
				r.log.WithError(err).WithField("path", req.URL.Path).Warn("ipc call failed")
			}
			writeJSON(w, status, body)
		}
	}
}

func (r *Router) classify(err error) (int, errorBody) {
	var ce *domain.CollaboratorError
	switch {
	case errors.As(err, &ce):
		body := errorBody{Kind: string(ce.Kind), Message: ce.Kind.UserMessage()}
		if !r.packaged {
			body.Detail = ce.Stderr
			if body.Detail == "" {
				body.Detail = ce.Error()
			}
		}
		if ce.Kind == domain.ErrorComponentNotFound {
			return http.StatusServiceUnavailable, body
		}
		return http.StatusBadGateway, body
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrPathNotGranted):
		return http.StatusBadRequest, errorBody{Kind: "invalid_request", Message: err.Error()}
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusNotFound, errorBody{Kind: "no_session", Message: err.Error()}
	}
	body := errorBody{Kind: string(domain.ErrorInternal), Message: domain.ErrorInternal.UserMessage()}
	if !r.packaged {
		body.Detail = err.Error()
	}
	return http.StatusInternalServerError, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// POST /ipc/open-file-dialog
func (r *Router) handleOpenFileDialog(w http.ResponseWriter, req *http.Request) error {
	paths, err := r.broker.OpenFileDialog()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
	return nil
}

// POST /ipc/invoke-analysis
// Body: {"testType": "SV", "filePaths": ["..."]}
func (r *Router) handleInvokeAnalysis(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		TestType  string   `json:"testType"`
		FilePaths []string `json:"filePaths"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	a, err := r.broker.InvokeAnalysis(body.TestType, body.FilePaths)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

// POST /ipc/process-audio
// Body: {"testType": "SV", "filePath": "..."}
func (r *Router) handleProcessAudio(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		TestType string `json:"testType"`
		FilePath string `json:"filePath"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	// langsung balik, hasil analisis cuma masuk log
	if err := r.broker.ProcessAudio(body.TestType, body.FilePath); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
	return nil
}

// POST /ipc/save-csv
// Body: {"content": "...", "defaultName": "SV_all_features.csv"}
func (r *Router) handleSaveCSV(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Content     string `json:"content"`
		DefaultName string `json:"defaultName"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, r.broker.SaveCSV(body.Content, body.DefaultName))
	return nil
}

// POST /ipc/save-image
// Body: {"imagePath": "...", "defaultName": "..."}
func (r *Router) handleSaveImage(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ImagePath   string `json:"imagePath"`
		DefaultName string `json:"defaultName"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, r.broker.SaveImage(body.ImagePath, body.DefaultName))
	return nil
}

// POST /ipc/image-to-data-url
// Body: {"path": "..."}
func (r *Router) handleImageToDataURL(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Path string `json:"path"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]*string{"dataUrl": r.broker.ImageToDataURL(body.Path)})
	return nil
}

// POST /ipc/cleanup-output
func (r *Router) handleCleanupOutput(w http.ResponseWriter, req *http.Request) error {
	writeJSON(w, http.StatusOK, r.broker.CleanupOutput())
	return nil
}

type loadedResult struct {
	SessionID string              `json:"sessionId"`
	TestType  domain.TestType     `json:"testType"`
	Result    domain.Result       `json:"result"`
	Table     domain.FeatureTable `json:"table"`
}

// POST /ipc/results
// Body: {"invocationId": "<id from invoke-analysis>"}
// Only output the collaborator produced for this process can be loaded, so
// plot paths in a result never come from the page.
func (r *Router) handleLoadResults(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		InvocationID string `json:"invocationId"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	a, err := r.broker.TakeOutput(body.InvocationID)
	if err != nil {
		return err
	}
	sess := r.results.Load(a.TestType, a.Output)
	tbl, err := r.results.Page(1)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, loadedResult{
		SessionID: sess.ID,
		TestType:  sess.TestType,
		Result:    sess.Result,
		Table:     tbl,
	})
	return nil
}

// GET /ipc/results/page?n=2
func (r *Router) handleResultsPage(w http.ResponseWriter, req *http.Request) error {
	n, _ := strconv.Atoi(req.URL.Query().Get("n"))
	tbl, err := r.results.Page(n)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, tbl)
	return nil
}

// GET /ipc/results/csv?file=0  (per file)
// GET /ipc/results/csv         (all files)
func (r *Router) handleResultsCSV(w http.ResponseWriter, req *http.Request) error {
	var (
		content, name string
		err           error
	)
	if raw := req.URL.Query().Get("file"); raw != "" {
		i, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return fmt.Errorf("%w: file must be an index", domain.ErrInvalidRequest)
		}
		content, name, err = r.results.FileCSV(i)
	} else {
		content, name, err = r.results.AggregateCSV()
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content, "filename": name})
	return nil
}

// GET /ipc/history?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.results.History(req.Context(), page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}
