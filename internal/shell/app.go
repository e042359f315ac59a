package shell

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/bryanwahyu/neurally/internal/broker"
)

// Lifecycle is what the window needs from the broker.
type Lifecycle interface {
	Bind(ctx context.Context)
	CleanupOutput() broker.SaveResult
}

// App holds the window lifecycle hooks.
type App struct {
	lifecycle Lifecycle
	dialogs   *Dialogs
	archive   interface{ WaitArchived() }
	log       *logrus.Entry
}

func NewApp(lc Lifecycle, dialogs *Dialogs, archive interface{ WaitArchived() }, log *logrus.Logger) *App {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &App{
		lifecycle: lc,
		dialogs:   dialogs,
		archive:   archive,
		log:       log.WithField("component", "shell"),
	}
}

func (a *App) startup(ctx context.Context) {
	a.dialogs.bind(ctx)
	a.lifecycle.Bind(ctx)
	a.log.Info("window started")
}

// closing the last window throws the session away
func (a *App) beforeClose(ctx context.Context) bool {
	a.cleanup("window closed")
	return false
}

func (a *App) shutdown(ctx context.Context) {
	a.cleanup("shutdown")
	if a.archive != nil {
		a.archive.WaitArchived()
	}
	a.log.Info("window stopped")
}

func (a *App) cleanup(reason string) {
	if res := a.lifecycle.CleanupOutput(); !res.Success {
		a.log.WithField("reason", reason).Warnf("output cleanup failed: %s", res.Error)
	}
}

// Dialogs implements broker.Dialogs on the native Wails dialogs. It works
// once the window has started.
type Dialogs struct {
	mu  sync.RWMutex
	ctx context.Context
}

func (d *Dialogs) bind(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
}

func (d *Dialogs) windowCtx() (context.Context, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ctx == nil {
		return nil, errWindowNotStarted
	}
	return d.ctx, nil
}

func (d *Dialogs) OpenFiles(title string, filter broker.FileFilter) ([]string, error) {
	ctx, err := d.windowCtx()
	if err != nil {
		return nil, err
	}
	return runtime.OpenMultipleFilesDialog(ctx, runtime.OpenDialogOptions{
		Title:   title,
		Filters: []runtime.FileFilter{{DisplayName: filter.DisplayName, Pattern: filter.Pattern}},
	})
}

func (d *Dialogs) SaveFile(title, defaultName string, filter broker.FileFilter) (string, error) {
	ctx, err := d.windowCtx()
	if err != nil {
		return "", err
	}
	return runtime.SaveFileDialog(ctx, runtime.SaveDialogOptions{
		Title:           title,
		DefaultFilename: defaultName,
		Filters:         []runtime.FileFilter{{DisplayName: filter.DisplayName, Pattern: filter.Pattern}},
	})
}
