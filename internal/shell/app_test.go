package shell

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/neurally/internal/broker"
)

type fakeLifecycle struct {
	bound    context.Context
	cleanups int
	fail     bool
}

func (f *fakeLifecycle) Bind(ctx context.Context) { f.bound = ctx }

func (f *fakeLifecycle) CleanupOutput() broker.SaveResult {
	f.cleanups++
	if f.fail {
		return broker.SaveResult{Error: "busy"}
	}
	return broker.SaveResult{Success: true}
}

type fakeArchive struct{ waited bool }

func (f *fakeArchive) WaitArchived() { f.waited = true }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestLifecycle(t *testing.T) {
	lc := &fakeLifecycle{}
	arch := &fakeArchive{}
	dlg := &Dialogs{}
	app := NewApp(lc, dlg, arch, quietLogger())

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "window")
	app.startup(ctx)
	if lc.bound != ctx {
		t.Fatal("broker not bound to the window context")
	}
	if got, err := dlg.windowCtx(); err != nil || got != ctx {
		t.Fatalf("dialogs context = %v, %v", got, err)
	}

	if prevent := app.beforeClose(ctx); prevent {
		t.Fatal("close must not be prevented")
	}
	app.shutdown(ctx)
	if lc.cleanups != 2 {
		t.Fatalf("cleanups = %d, want close + shutdown", lc.cleanups)
	}
	if !arch.waited {
		t.Fatal("shutdown did not wait for archival")
	}
}

func TestCleanupFailureDoesNotBlockClose(t *testing.T) {
	lc := &fakeLifecycle{fail: true}
	app := NewApp(lc, &Dialogs{}, nil, quietLogger())
	if app.beforeClose(context.Background()) {
		t.Fatal("close prevented")
	}
	app.shutdown(context.Background())
}

func TestDialogsBeforeStartup(t *testing.T) {
	d := &Dialogs{}
	if _, err := d.OpenFiles("x", broker.FileFilter{}); !errors.Is(err, errWindowNotStarted) {
		t.Fatalf("open err = %v", err)
	}
	if _, err := d.SaveFile("x", "y.csv", broker.FileFilter{}); !errors.Is(err, errWindowNotStarted) {
		t.Fatalf("save err = %v", err)
	}
}

func TestPageResetsOutputBeforeEachRun(t *testing.T) {
	page, err := assets.ReadFile("frontend/dist/index.html")
	if err != nil {
		t.Fatal(err)
	}
	html := string(page)

	for _, handler := range []string{`$("pick").onclick`, `$("run").onclick`} {
		start := strings.Index(html, handler)
		if start < 0 {
			t.Fatalf("%s missing", handler)
		}
		body := html[start:]
		if end := strings.Index(body, "\n};"); end > 0 {
			body = body[:end]
		}
		reset := strings.Index(body, "resetSession()")
		if reset < 0 {
			t.Fatalf("%s never resets the session", handler)
		}
		if inv := strings.Index(body, "/ipc/invoke-analysis"); inv >= 0 && inv < reset {
			t.Fatalf("%s invokes before cleaning up", handler)
		}
	}
	if !strings.Contains(html, `ipc("/ipc/cleanup-output"`) {
		t.Fatal("resetSession does not call cleanup-output")
	}
	if strings.Contains(html, `ipc("/ipc/results", { testType`) {
		t.Fatal("page still posts raw output as a result")
	}
}
