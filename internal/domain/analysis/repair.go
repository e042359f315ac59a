package analysis

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// bare NaN right before a delimiter; the collaborator writes it for missing values
var nanToken = regexp.MustCompile(`\bNaN([,}])`)

// Repair turns collaborator stdout into text a JSON decoder accepts.
func Repair(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "{") {
		if i := strings.IndexByte(s, '{'); i >= 0 {
			s = s[i:]
		}
	}
	return nanToken.ReplaceAllString(s, "null$1")
}

// wire shapes produced by the collaborator
type wireFile struct {
	Filename string          `json:"filename"`
	Features json.RawMessage `json:"features"`
	PlotPath string          `json:"plot_path"`
}

type wireResult struct {
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	Error          string          `json:"error"`
	ElapsedSeconds *float64        `json:"elapsed_seconds"`
	File           string          `json:"file"`
	Files          []wireFile      `json:"files"`
	Features       json.RawMessage `json:"features"`
	PlotPath       string          `json:"plot_path"`
}

// Parse repairs raw output and decodes it into a Result. It never fails: a
// decode problem becomes an error-state Result carrying the repaired text.
func Parse(raw string) Result {
	text := Repair(raw)

	var w wireResult
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return Result{Kind: KindError, Message: "could not parse analysis output: " + err.Error(), RawText: text}
	}
	return normalize(w, text)
}

func normalize(w wireResult, text string) Result {
	if w.Error != "" || strings.EqualFold(w.Status, string(KindError)) {
		msg := w.Error
		if msg == "" {
			msg = w.Message
		}
		return Result{Kind: KindError, Message: msg, RawText: text}
	}

	res := Result{Kind: KindSuccess, Message: w.Message, ElapsedSeconds: w.ElapsedSeconds}

	if w.Files != nil {
		res.Files = make([]FileResult, 0, len(w.Files))
		for _, f := range w.Files {
			features := decodeFeatures(f.Features)
			res.Files = append(res.Files, FileResult{
				Filename: fileName(f.Filename, features),
				Features: features,
				PlotPath: f.PlotPath,
			})
		}
		return res
	}

	// legacy single-file shape
	if len(w.Features) > 0 || w.PlotPath != "" {
		features := decodeFeatures(w.Features)
		name := w.File
		if name != "" {
			name = filepath.Base(name)
		}
		res.Files = []FileResult{{
			Filename: fileName(name, features),
			Features: features,
			PlotPath: w.PlotPath,
		}}
	}
	return res
}

// Normalize re-runs normalization over an already unified Result so that
// both wire shapes can be compared through one function.
func Normalize(r Result) Result {
	out := r
	out.Files = make([]FileResult, len(r.Files))
	copy(out.Files, r.Files)
	for i := range out.Files {
		out.Files[i].Filename = fileName(out.Files[i].Filename, out.Files[i].Features)
	}
	return out
}

func fileName(name string, features Features) string {
	if name != "" {
		return name
	}
	if v, ok := features.Get("filename"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// decodeFeatures accepts either an object or a records array (first record
// wins) and keeps key order.
func decodeFeatures(raw json.RawMessage) Features {
	if len(raw) == 0 {
		return Features{}
	}
	doc := gjson.ParseBytes(raw)
	if doc.IsArray() {
		arr := doc.Array()
		if len(arr) == 0 {
			return Features{}
		}
		doc = arr[0]
	}
	if !doc.IsObject() {
		return Features{}
	}

	out := Features{}
	doc.ForEach(func(key, value gjson.Result) bool {
		out = append(out, Feature{Key: key.String(), Value: featureValue(value)})
		return true
	})
	return out
}

func featureValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.Null:
		return nil
	default:
		return v.Raw
	}
}
