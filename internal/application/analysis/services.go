package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/neurally/internal/application"
	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
	"github.com/bryanwahyu/neurally/internal/domain/catalog"
)

// Service implements the analysis use-cases and holds the presenter session.
// It is safe for concurrent use.
type Service struct {
	Runner    domain.Runner
	Repo      domain.Repository
	Artifacts domain.ArtifactStore // nil = archival off
	Namer     domain.Namer
	Clock     application.Clock
	Log       *logrus.Logger

	mu        sync.RWMutex
	session   *Session
	archiving sync.WaitGroup
}

// Session is the result currently shown by the UI.
type Session struct {
	ID       string          `json:"id"`
	TestType domain.TestType `json:"test_type"`
	Result   domain.Result   `json:"result"`
	LoadedAt time.Time       `json:"loaded_at"`
}

func (s *Service) logger() *logrus.Logger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

func (s *Service) namer() domain.Namer {
	if s.Namer == nil {
		return catalog.Default()
	}
	return s.Namer
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

//
// ==== USE CASES ====
//

// Invoke runs the collaborator once and returns its trimmed stdout. Every
// call, success or not, lands in the history.
func (s *Service) Invoke(ctx context.Context, req domain.Request) (string, error) {
	if !req.TestType.Valid() || len(req.FilePaths) == 0 {
		return "", domain.ErrInvalidRequest
	}

	rec := &domain.Record{
		ID:        domain.RecordID(uuid.New().String()),
		TestType:  req.TestType,
		FileCount: len(req.FilePaths),
		CreatedAt: s.now(),
	}

	raw, err := s.Runner.Run(ctx, req)
	rec.DurationMS = raw.DurationMS
	if err != nil {
		rec.Status = domain.KindError
		rec.ErrorKind = domain.ErrorInternal
		var ce *domain.CollaboratorError
		if errors.As(err, &ce) {
			rec.ErrorKind = ce.Kind
		}
		rec.Message = rec.ErrorKind.UserMessage()
		s.record(rec)
		return "", err
	}

	// parse cuma buat ringkasan history, UI tetap terima raw text
	parsed := domain.Parse(raw.Stdout)
	rec.Status = parsed.Kind
	rec.Message = parsed.Message
	if parsed.ElapsedSeconds != nil {
		rec.ElapsedSeconds = *parsed.ElapsedSeconds
	}
	s.record(rec)
	return raw.Stdout, nil
}

// history must never fail an analysis
func (s *Service) record(rec *domain.Record) {
	if s.Repo == nil {
		return
	}
	if err := s.Repo.Save(context.Background(), rec); err != nil {
		s.logger().WithError(err).WithField("record_id", rec.ID).Warn("history save failed")
	}
}

// Load parses raw collaborator output into the current session, replacing
// whatever was loaded before.
func (s *Service) Load(tt domain.TestType, raw string) *Session {
	if !tt.Valid() {
		tt = domain.TestSustainedVowel
	}
	sess := &Session{
		ID:       uuid.New().String(),
		TestType: tt,
		Result:   domain.Normalize(domain.Parse(raw)),
		LoadedAt: s.now(),
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	if s.Artifacts != nil && sess.Result.Kind == domain.KindSuccess {
		s.archiving.Add(1)
		go func() {
			defer s.archiving.Done()
			s.archive(sess)
		}()
	}
	return sess
}

// archive uploads plots and the aggregate CSV under <session-id>/.
func (s *Service) archive(sess *Session) {
	ctx := context.Background()
	log := s.logger().WithField("session", sess.ID)

	for _, f := range sess.Result.Files {
		if f.PlotPath == "" {
			continue
		}
		key := fmt.Sprintf("%s/%s", sess.ID, filepath.Base(f.PlotPath))
		if _, err := s.Artifacts.Upload(ctx, f.PlotPath, key); err != nil {
			log.WithError(err).WithField("plot", f.PlotPath).Warn("archive plot failed")
		}
	}

	csv, err := domain.AggregateCSV(sess.TestType, s.namer(), sess.Result.Files)
	if err != nil {
		log.WithError(err).Warn("archive csv build failed")
		return
	}
	if _, err := s.Artifacts.UploadBytes(ctx, []byte(csv), sess.ID+"/results.csv", "text/csv"); err != nil {
		log.WithError(err).Warn("archive csv failed")
		return
	}
	log.WithField("files", len(sess.Result.Files)).Info("session archived")
}

// WaitArchived blocks until background uploads are done.
func (s *Service) WaitArchived() { s.archiving.Wait() }

// Current returns the loaded session or ErrNoSession.
func (s *Service) Current() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, domain.ErrNoSession
	}
	return s.session, nil
}

// Clear drops the session; called on cleanup.
func (s *Service) Clear() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
}

// PlotPaths lists the plot files of the current session.
func (s *Service) PlotPaths() []string {
	sess, err := s.Current()
	if err != nil {
		return nil
	}
	var out []string
	for _, f := range sess.Result.Files {
		if f.PlotPath != "" {
			out = append(out, f.PlotPath)
		}
	}
	return out
}

// Page is the feature table for page n of the current session.
func (s *Service) Page(n int) (domain.FeatureTable, error) {
	sess, err := s.Current()
	if err != nil {
		return domain.FeatureTable{}, err
	}
	return domain.BuildTable(sess.TestType, s.namer(), sess.Result.Files, n), nil
}

// FileCSV is the CSV download for file i of the session, with a suggested
// filename.
func (s *Service) FileCSV(i int) (string, string, error) {
	sess, err := s.Current()
	if err != nil {
		return "", "", err
	}
	if i < 0 || i >= len(sess.Result.Files) {
		return "", "", fmt.Errorf("%w: file index %d out of range", domain.ErrInvalidRequest, i)
	}
	f := sess.Result.Files[i]
	out, err := domain.FileCSV(sess.TestType, s.namer(), f)
	if err != nil {
		return "", "", err
	}
	name := fmt.Sprintf("%s_%s_features.csv", sess.TestType, trimExt(f.Filename))
	return out, name, nil
}

// AggregateCSV is the "download all" CSV of the session.
func (s *Service) AggregateCSV() (string, string, error) {
	sess, err := s.Current()
	if err != nil {
		return "", "", err
	}
	out, err := domain.AggregateCSV(sess.TestType, s.namer(), sess.Result.Files)
	if err != nil {
		return "", "", err
	}
	return out, fmt.Sprintf("%s_all_features.csv", sess.TestType), nil
}

// History pages through past invocations.
func (s *Service) History(ctx context.Context, page, pageSize int) (domain.PaginatedRecords, error) {
	return s.Repo.Paginate(ctx, page, pageSize)
}

func trimExt(name string) string {
	base := filepath.Base(name)
	return base[:len(base)-len(filepath.Ext(base))]
}
