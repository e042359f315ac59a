package collaborator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/neurally/internal/config"
	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newShellRunner writes body as the collaborator script and runs it with /bin/sh.
func newShellRunner(t *testing.T, body string, packaged bool) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell collaborator not available on windows")
	}
	base := t.TempDir()
	if body != "" {
		if err := os.WriteFile(filepath.Join(base, "main.sh"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{}
	cfg.Collaborator.Interpreter = "/bin/sh"
	cfg.Collaborator.Script = "main.sh"
	app := config.AppContext{BasePath: base, Packaged: packaged, Platform: runtime.GOOS}
	return NewRunner(app, cfg, quietLogger())
}

func TestRunSingleFileTrimsStdout(t *testing.T) {
	r := newShellRunner(t, `echo "loading"; echo "$1;$2"; echo`, false)
	res, err := r.Run(context.Background(), domain.Request{TestType: domain.TestSustainedVowel, FilePaths: []string{"/data/a.wav"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "loading\nSV;/data/a.wav" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
}

func TestRunMultipleFilesJoinsWithPipe(t *testing.T) {
	r := newShellRunner(t, `echo "$1;$2;$3;$#"`, false)
	res, err := r.Run(context.Background(), domain.Request{
		TestType:  domain.TestParagraphReading,
		FilePaths: []string{"/data/a.wav", "/data/b.wav", "/data/c.wav"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "PR;--multiple;/data/a.wav|/data/b.wav|/data/c.wav;3" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestRunBuffersLargeOutput(t *testing.T) {
	r := newShellRunner(t, `i=0; while [ $i -lt 5000 ]; do echo "line $i"; i=$((i+1)); done`, false)
	res, err := r.Run(context.Background(), domain.Request{TestType: domain.TestSustainedVowel, FilePaths: []string{"/a.wav"}})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(res.Stdout, "\n")
	if len(lines) != 5000 || lines[4999] != "line 4999" {
		t.Fatalf("got %d lines, last %q", len(lines), lines[len(lines)-1])
	}
}

func TestRunFailureIsClassified(t *testing.T) {
	tests := []struct {
		body string
		want domain.ErrorKind
	}{
		{`echo "PermissionError: [Errno 13] Permission denied" >&2; exit 3`, domain.ErrorPermission},
		{`echo "ModuleNotFoundError: No module named 'numpy'" >&2; exit 1`, domain.ErrorModuleConfig},
		{`echo "Audio file not found: /x.wav" >&2; exit 1`, domain.ErrorFileAccess},
		{`echo "boom" >&2; exit 2`, domain.ErrorInternal},
	}
	for _, tt := range tests {
		r := newShellRunner(t, tt.body, false)
		res, err := r.Run(context.Background(), domain.Request{TestType: domain.TestSustainedVowel, FilePaths: []string{"/a.wav"}})
		var ce *domain.CollaboratorError
		if !errors.As(err, &ce) {
			t.Fatalf("%q: expected CollaboratorError, got %v", tt.body, err)
		}
		if ce.Kind != tt.want {
			t.Errorf("%q: kind = %s, want %s", tt.body, ce.Kind, tt.want)
		}
		if ce.ExitCode == 0 || ce.ExitCode != res.ExitCode {
			t.Errorf("%q: exit code = %d / %d", tt.body, ce.ExitCode, res.ExitCode)
		}
		if ce.Stderr == "" {
			t.Errorf("%q: stderr not captured", tt.body)
		}
	}
}

func TestRunMissingScriptDoesNotSpawn(t *testing.T) {
	r := newShellRunner(t, "", false)
	_, err := r.Run(context.Background(), domain.Request{TestType: domain.TestSustainedVowel, FilePaths: []string{"/a.wav"}})
	var ce *domain.CollaboratorError
	if !errors.As(err, &ce) || ce.Kind != domain.ErrorComponentNotFound {
		t.Fatalf("expected component_not_found, got %v", err)
	}
}

func TestRunPackagedSetsNoLog(t *testing.T) {
	t.Setenv("NEURALLY_NO_LOG", "")
	r := newShellRunner(t, `echo "[$NEURALLY_NO_LOG]"`, true)
	res, err := r.Run(context.Background(), domain.Request{TestType: domain.TestSustainedVowel, FilePaths: []string{"/a.wav"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "[1]" {
		t.Fatalf("stdout = %q", res.Stdout)
	}

	dev := newShellRunner(t, `echo "[$NEURALLY_NO_LOG]"`, false)
	res, err = dev.Run(context.Background(), domain.Request{TestType: domain.TestSustainedVowel, FilePaths: []string{"/a.wav"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "[]" {
		t.Fatalf("dev stdout = %q", res.Stdout)
	}
}

func TestInvocationOnWindowsUsesBinary(t *testing.T) {
	cfg := &config.Config{}
	cfg.Collaborator.Binary = filepath.Join("src", "scripts", "main.exe")
	cfg.Collaborator.Interpreter = "python3"
	cfg.Collaborator.Script = filepath.Join("src", "scripts", "main.py")
	r := NewRunner(config.AppContext{BasePath: "/opt/app", Platform: "windows"}, cfg, quietLogger())

	inv, err := r.Invocation(domain.Request{TestType: domain.TestSyllableRepetition, FilePaths: []string{"a.wav", "b.wav"}})
	if err != nil {
		t.Fatal(err)
	}
	if inv.Executable != filepath.Join("/opt/app", "src", "scripts", "main.exe") || inv.Script != "" {
		t.Fatalf("invocation = %+v", inv)
	}
	if strings.Join(inv.Args, " ") != "SR --multiple a.wav|b.wav" {
		t.Fatalf("args = %v", inv.Args)
	}

	if _, err := r.Invocation(domain.Request{TestType: domain.TestSustainedVowel}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("empty request err = %v", err)
	}
}
