package analysis

import (
	"bytes"
	"encoding/json"
	"time"
)

// TestType enum
type TestType string

const (
	TestSustainedVowel     TestType = "SV"
	TestSyllableRepetition TestType = "SR"
	TestParagraphReading   TestType = "PR"
)

// Valid reports whether t is one of the codes the collaborator accepts.
func (t TestType) Valid() bool {
	switch t {
	case TestSustainedVowel, TestSyllableRepetition, TestParagraphReading:
		return true
	}
	return false
}

// Request is one analysis call coming from the UI.
type Request struct {
	TestType  TestType
	FilePaths []string
}

// Invocation is the resolved collaborator command line for a Request.
type Invocation struct {
	Executable string
	Script     string // kosong kalau pakai binary hasil compile
	Args       []string
	Env        []string
}

// RawResult is what the collaborator left on its streams.
type RawResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
}

// Kind tags a Result.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Result is the unified model the UI renders, whatever wire shape the
// collaborator produced.
type Result struct {
	Kind           Kind         `json:"status"`
	Message        string       `json:"message,omitempty"`
	ElapsedSeconds *float64     `json:"elapsed_seconds,omitempty"`
	Files          []FileResult `json:"files,omitempty"`
	RawText        string       `json:"raw_text,omitempty"`
}

// FileResult holds the features extracted from one recording.
type FileResult struct {
	Filename string   `json:"filename"`
	Features Features `json:"features"`
	PlotPath string   `json:"plot_path,omitempty"`
}

// MetadataKeys never show up in feature listings or CSV output.
var MetadataKeys = map[string]bool{
	"filename":    true,
	"participant": true,
	"test":        true,
}

// Feature is one named measurement. Value is float64, string or nil.
type Feature struct {
	Key   string
	Value any
}

// Features keeps the collaborator's extraction order.
type Features []Feature

// Get returns the value stored under key.
func (f Features) Get(key string) (any, bool) {
	for _, ft := range f {
		if ft.Key == key {
			return ft.Value, true
		}
	}
	return nil, false
}

// Keys lists feature keys in order, metadata excluded.
func (f Features) Keys() []string {
	out := make([]string, 0, len(f))
	for _, ft := range f {
		if MetadataKeys[ft.Key] {
			continue
		}
		out = append(out, ft.Key)
	}
	return out
}

// MarshalJSON writes the features as an object in extraction order.
func (f Features) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ft := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ft.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(ft.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RecordID identifies a stored analysis.
type RecordID string

// Record is the history entry kept for every invoke, success or not.
type Record struct {
	ID             RecordID  `json:"id"`
	TestType       TestType  `json:"test_type"`
	FileCount      int       `json:"file_count"`
	Status         Kind      `json:"status"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	Message        string    `json:"message,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
