package broker

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
	"github.com/bryanwahyu/neurally/internal/middleware"
)

// FileFilter restricts what a native dialog shows.
type FileFilter struct {
	DisplayName string
	Pattern     string
}

// Dialogs are the native dialogs of the window. An empty result with a nil
// error means the user cancelled.
type Dialogs interface {
	OpenFiles(title string, filter FileFilter) ([]string, error)
	SaveFile(title, defaultName string, filter FileFilter) (string, error)
}

// Analyzer is what the broker needs from the analysis service.
type Analyzer interface {
	Invoke(ctx context.Context, req domain.Request) (string, error)
	PlotPaths() []string
	Clear()
}

var (
	wavFilter = FileFilter{DisplayName: "Audio Files (*.wav)", Pattern: "*.wav"}
	csvFilter = FileFilter{DisplayName: "CSV Files (*.csv)", Pattern: "*.csv"}
	pngFilter = FileFilter{DisplayName: "PNG Images (*.png)", Pattern: "*.png"}
)

// SaveResult is returned by the save operations. Success=false with an
// empty Error means the user cancelled.
type SaveResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"filePath,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Analysis is one finished invoke-analysis call. The UI gets the output
// for display but can only load it as a result through ID.
type Analysis struct {
	ID       string          `json:"invocationId"`
	TestType domain.TestType `json:"testType"`
	Output   string          `json:"output"`
}

// Broker is the only way the UI reaches the filesystem or the collaborator.
// Analysis inputs must be dialog selections. Files the UI may read back are
// dialog selections, plots of the current result, or files under the output
// directory.
type Broker struct {
	outputDir string
	dialogs   Dialogs
	analyzer  Analyzer
	log       *logrus.Entry

	mu      sync.RWMutex
	ctx     context.Context
	granted map[string]struct{}
	outputs map[string]Analysis
}

func New(outputDir string, dialogs Dialogs, analyzer Analyzer, log *logrus.Logger) *Broker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Broker{
		outputDir: filepath.Clean(outputDir),
		dialogs:   dialogs,
		analyzer:  analyzer,
		log:       log.WithField("component", "broker"),
		ctx:       context.Background(),
		granted:   make(map[string]struct{}),
		outputs:   make(map[string]Analysis),
	}
}

// Bind sets the application lifetime context. Collaborator processes run
// under it, so they only die with the app.
func (b *Broker) Bind(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

func (b *Broker) lifetime() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// OutputDir is the transient directory owned by the current session.
func (b *Broker) OutputDir() string { return b.outputDir }

func (b *Broker) grant(paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range paths {
		b.granted[filepath.Clean(p)] = struct{}{}
	}
}

// selected reports whether path came from the open dialog.
func (b *Broker) selected(path string) bool {
	if path == "" {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.granted[filepath.Clean(path)]
	return ok
}

// allowed is for reading files back: dialog selections, plots of the
// current result (which only comes from collaborator output) and the
// output directory.
func (b *Broker) allowed(path string) bool {
	if path == "" {
		return false
	}
	if b.selected(path) {
		return true
	}
	p := filepath.Clean(path)
	for _, plot := range b.analyzer.PlotPaths() {
		if filepath.Clean(plot) == p {
			return true
		}
	}
	rel, err := filepath.Rel(b.outputDir, p)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// OpenFileDialog shows the wav picker. nil means cancelled.
func (b *Broker) OpenFileDialog() ([]string, error) {
	paths, err := b.dialogs.OpenFiles("Select recordings", wavFilter)
	if err != nil {
		return nil, fmt.Errorf("open file dialog: %w", err)
	}
	if len(paths) == 0 {
		return nil, nil
	}
	b.grant(paths)
	b.log.WithField("files", len(paths)).Debug("files selected")
	return paths, nil
}

func (b *Broker) request(testType string, paths []string) (domain.Request, error) {
	tt, err := middleware.ValidateTestType(testType)
	if err != nil {
		return domain.Request{}, err
	}
	clean, err := middleware.ValidateFilePaths(paths)
	if err != nil {
		return domain.Request{}, err
	}
	for _, p := range clean {
		if !b.selected(p) {
			return domain.Request{}, fmt.Errorf("%w: %s", domain.ErrPathNotGranted, p)
		}
	}
	return domain.Request{TestType: tt, FilePaths: clean}, nil
}

// InvokeAnalysis runs the collaborator and waits for it. Output is the
// collaborator's trimmed stdout, kept under the returned ID until
// TakeOutput.
func (b *Broker) InvokeAnalysis(testType string, paths []string) (Analysis, error) {
	req, err := b.request(testType, paths)
	if err != nil {
		return Analysis{}, err
	}
	middleware.AnalysisStarted()
	out, err := b.analyzer.Invoke(b.lifetime(), req)
	middleware.AnalysisFinished(err != nil)
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{ID: uuid.New().String(), TestType: req.TestType, Output: out}
	b.mu.Lock()
	b.outputs[a.ID] = a
	b.mu.Unlock()
	return a, nil
}

// TakeOutput hands back an output produced by InvokeAnalysis, once.
func (b *Broker) TakeOutput(id string) (Analysis, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.outputs[id]
	if !ok {
		return Analysis{}, fmt.Errorf("%w: unknown invocation %q", domain.ErrInvalidRequest, id)
	}
	delete(b.outputs, id)
	return a, nil
}

// ProcessAudio is the legacy single-file call. It starts the analysis and
// returns before it finishes; the caller never sees the result or a
// failure, only the log does.
func (b *Broker) ProcessAudio(testType, path string) error {
	req, err := b.request(testType, []string{path})
	if err != nil {
		return err
	}
	ctx := b.lifetime()
	go func() {
		middleware.AnalysisStarted()
		_, err := b.analyzer.Invoke(ctx, req)
		middleware.AnalysisFinished(err != nil)
		if err != nil {
			b.log.WithError(err).WithField("file", filepath.Base(path)).Warn("background analysis failed")
			return
		}
		b.log.WithField("file", filepath.Base(path)).Info("background analysis finished")
	}()
	return nil
}

// SaveCSV writes content wherever the user picks.
func (b *Broker) SaveCSV(content, defaultName string) SaveResult {
	target, err := b.dialogs.SaveFile("Save CSV", middleware.SanitizeFilename(defaultName, "results.csv"), csvFilter)
	if err != nil {
		return SaveResult{Error: err.Error()}
	}
	if target == "" {
		return SaveResult{}
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		b.log.WithError(err).Warn("save csv failed")
		return SaveResult{Error: err.Error()}
	}
	return SaveResult{Success: true, FilePath: target}
}

// SaveImage copies a plot wherever the user picks.
func (b *Broker) SaveImage(imagePath, defaultName string) SaveResult {
	if !b.allowed(imagePath) {
		return SaveResult{Error: domain.ErrPathNotGranted.Error()}
	}
	fallback := filepath.Base(imagePath)
	target, err := b.dialogs.SaveFile("Save plot", middleware.SanitizeFilename(defaultName, fallback), pngFilter)
	if err != nil {
		return SaveResult{Error: err.Error()}
	}
	if target == "" {
		return SaveResult{}
	}
	if err := copyFile(imagePath, target); err != nil {
		b.log.WithError(err).Warn("save image failed")
		return SaveResult{Error: err.Error()}
	}
	return SaveResult{Success: true, FilePath: target}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ImageToDataURL inlines an image for display. nil on any failure.
func (b *Broker) ImageToDataURL(path string) *string {
	if !b.allowed(path) {
		b.log.WithField("path", path).Warn("data url for ungranted path refused")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		b.log.WithError(err).Debug("read image failed")
		return nil
	}
	// tanpa parameter (charset dll), data URL harus media type polos
	media, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	url := fmt.Sprintf("data:%s;base64,%s", strings.TrimSpace(media), base64.StdEncoding.EncodeToString(data))
	return &url
}

// CleanupOutput removes the output directory and drops the session along
// with any output not loaded yet. Dialog selections stay granted.
func (b *Broker) CleanupOutput() SaveResult {
	b.analyzer.Clear()
	b.mu.Lock()
	b.outputs = make(map[string]Analysis)
	b.mu.Unlock()
	if err := os.RemoveAll(b.outputDir); err != nil {
		b.log.WithError(err).WithField("dir", b.outputDir).Warn("cleanup output failed")
		return SaveResult{Error: err.Error()}
	}
	b.log.WithField("dir", b.outputDir).Debug("output cleaned")
	return SaveResult{Success: true}
}
