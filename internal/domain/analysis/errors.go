package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest = errors.New("invalid analysis request")
	ErrPathNotGranted = errors.New("path was not selected through the file dialog")
	ErrNoSession      = errors.New("no analysis result loaded")
)

// ErrorKind is the coarse class of a collaborator failure.
type ErrorKind string

const (
	ErrorComponentNotFound ErrorKind = "component_not_found"
	ErrorModuleConfig      ErrorKind = "module_configuration"
	ErrorFileAccess        ErrorKind = "file_access"
	ErrorPermission        ErrorKind = "permission"
	ErrorInternal          ErrorKind = "internal"
)

// Classification maps a stderr phrase to an ErrorKind.
type Classification struct {
	Substring string
	Kind      ErrorKind
}

// Classifications is checked top to bottom, first case-sensitive match wins.
var Classifications = []Classification{
	{Substring: "No module named", Kind: ErrorModuleConfig},
	{Substring: "ModuleNotFoundError", Kind: ErrorModuleConfig},
	{Substring: "ImportError", Kind: ErrorModuleConfig},
	{Substring: "Permission denied", Kind: ErrorPermission},
	{Substring: "PermissionError", Kind: ErrorPermission},
	{Substring: "No such file or directory", Kind: ErrorFileAccess},
	{Substring: "FileNotFoundError", Kind: ErrorFileAccess},
	{Substring: "Audio file not found", Kind: ErrorFileAccess},
}

// Classify returns the kind for the captured stderr text.
func Classify(stderr string) ErrorKind {
	return ClassifyWith(Classifications, stderr)
}

// ClassifyWith runs an explicit table; unmatched text is internal.
func ClassifyWith(table []Classification, stderr string) ErrorKind {
	for _, c := range table {
		if c.Substring != "" && strings.Contains(stderr, c.Substring) {
			return c.Kind
		}
	}
	return ErrorInternal
}

// UserMessage is the non-technical text shown to the end user.
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrorComponentNotFound:
		return "The analysis component could not be found. Please reinstall the application."
	case ErrorModuleConfig:
		return "The analysis component is not configured correctly."
	case ErrorFileAccess:
		return "One of the selected files could not be read."
	case ErrorPermission:
		return "Permission was denied while processing the selected files."
	default:
		return "An internal processing error occurred."
	}
}

// CollaboratorError is returned when the collaborator could not run or
// exited non-zero.
type CollaboratorError struct {
	Kind     ErrorKind
	ExitCode int
	Stderr   string
	Stdout   string
	Err      error
}

func (e *CollaboratorError) Error() string {
	if e.Kind == ErrorComponentNotFound {
		if e.Err != nil {
			return "collaborator not found: " + e.Err.Error()
		}
		return "collaborator not found"
	}
	msg := fmt.Sprintf("collaborator failed (%s, exit=%d)", e.Kind, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
