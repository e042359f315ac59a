package shell

import (
	"embed"
	"errors"
	"fmt"
	"net/http"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

var errWindowNotStarted = errors.New("window not started")

// Window settings.
type Window struct {
	Title  string
	Width  int
	Height int
}

// Run opens the window and blocks until it is closed. IPC requests from the
// page fall through the embedded assets to handler.
func Run(w Window, app *App, handler http.Handler) error {
	err := wails.Run(&options.App{
		Title:  w.Title,
		Width:  w.Width,
		Height: w.Height,
		AssetServer: &assetserver.Options{
			Assets:  assets,
			Handler: handler,
		},
		OnStartup:     app.startup,
		OnBeforeClose: app.beforeClose,
		OnShutdown:    app.shutdown,
	})
	if err != nil {
		return fmt.Errorf("run window: %w", err)
	}
	return nil
}
