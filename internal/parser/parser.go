// Package parser validates and normalizes documents handed to the editor:
// saved projects and share payloads.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pitchside/playbook/internal/hydrate"
)

// DefaultMaxBytes is the size ceiling for a project document.
const DefaultMaxBytes = 1 << 20

// Option configures a Service.
type Option func(*Service)

// WithMaxBytes sets the project document size ceiling.
func WithMaxBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithIDGenerator sets the generator used for ids created while hydrating.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithNow sets the clock used to stamp documents without timestamps.
func WithNow(f func() time.Time) Option {
	return func(s *Service) { s.now = f }
}

// Service turns raw documents into projects.
type Service struct {
	logger   *slog.Logger
	validate *validator.Validate
	maxBytes int
	newID    func() string
	now      func() time.Time
}

// NewService creates a parser service.
func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:   logger,
		validate: newValidator(),
		maxBytes: DefaultMaxBytes,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names so messages match the document
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse loads raw as either a share payload (a document with a version and
// no id) or a saved project. A failed parse never yields a partial project.
func (s *Service) Parse(raw []byte) Result {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return failed("document is empty")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return failed(fmt.Sprintf("document is not a JSON object: %v", err))
	}

	_, hasVersion := probe["version"]
	_, hasID := probe["id"]
	var res Result
	if hasVersion && !hasID {
		res = s.parseShare(raw)
	} else {
		res = s.parseProject(raw)
	}

	if res.Success {
		s.logger.Debug("document parsed", "projectId", res.Project.ID, "frames", len(res.Project.Frames), "warnings", len(res.Warnings))
	} else {
		s.logger.Warn("document rejected", "errors", res.Errors)
	}
	return res
}

func (s *Service) parseShare(raw []byte) Result {
	if err := hydrate.ValidateSize(raw); err != nil {
		return failed(err.Error())
	}
	payload, err := hydrate.Decode(raw)
	if err != nil {
		return failed(err.Error())
	}

	var warnings []string
	p, err := hydrate.Hydrate(payload,
		hydrate.WithIDGenerator(s.newID),
		hydrate.WithNow(s.now),
		hydrate.WithWarnings(func(msg string) { warnings = append(warnings, msg) }),
	)
	if err != nil {
		return failed(err.Error())
	}
	return succeeded(p, warnings)
}

func (s *Service) parseProject(raw []byte) Result {
	if len(raw) > s.maxBytes {
		return failed(fmt.Sprintf("document is %d bytes, limit is %d", len(raw), s.maxBytes))
	}

	var doc projectDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return failed(fmt.Sprintf("decoding project: %v", err))
	}

	if errs := s.validateDoc(&doc); len(errs) > 0 {
		return failed(errs...)
	}

	n := &normalizer{now: s.now}
	p := n.project(doc)
	return succeeded(p, n.warnings)
}

func (s *Service) validateDoc(doc *projectDoc) []string {
	var errs []string

	if err := s.validate.Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	seen := make(map[string]bool, len(doc.Frames))
	for i, f := range doc.Frames {
		if f.ID == "" {
			continue
		}
		if seen[f.ID] {
			errs = append(errs, fmt.Sprintf("frames[%d].id: duplicate frame id %q", i, f.ID))
		}
		seen[f.ID] = true
	}
	return errs
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: is required", field)
	case "min":
		return fmt.Sprintf("%s: needs at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: %q is not one of [%s]", field, fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}
