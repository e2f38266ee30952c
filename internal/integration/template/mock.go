package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileStore serves templates from YAML files and keeps created templates in
// memory. It stands in for the Template API in mock mode and in the CLI.
type FileStore struct {
	logger *zap.Logger

	mu        sync.RWMutex
	templates map[string]*entity.Template
}

func NewFileStore(logger *zap.Logger) *FileStore {
	return &FileStore{
		logger:    logger,
		templates: map[string]*entity.Template{},
	}
}

// LoadDir reads every *.yaml and *.yml file of dir
func (s *FileStore) LoadDir(dir string) error {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("glob templates: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read template %s: %w", file, err)
		}
		tpl, err := ParseTemplate(data)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", file, err)
		}
		s.Add(tpl)
	}

	s.logger.Info("templates loaded", zap.String("dir", dir), zap.Int("count", len(files)))
	return nil
}

// ParseTemplate decodes and checks a YAML template
func ParseTemplate(data []byte) (*entity.Template, error) {
	var tpl entity.Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidTemplate, err)
	}
	if err := validateTemplate(&tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *FileStore) Add(tpl *entity.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = tpl
}

func (s *FileStore) GetTemplate(ctx context.Context, templateID string) (*entity.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", templateID, entity.ErrTemplateNotFound)
	}
	return tpl, nil
}

func (s *FileStore) CreateTemplate(ctx context.Context, tpl *entity.Template) (*entity.Template, error) {
	created := *tpl
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if err := validateTemplate(&created); err != nil {
		return nil, err
	}

	created.Stages = append([]entity.Stage{}, tpl.Stages...)
	s.Add(&created)

	ctxzap.Info(ctx, "[MOCK] template created", zap.String("template_id", created.ID))
	return &created, nil
}

// List returns templates sorted by id
func (s *FileStore) List() []*entity.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validateTemplate(tpl *entity.Template) error {
	switch {
	case strings.TrimSpace(tpl.ID) == "":
		return fmt.Errorf("%w: template id is required", entity.ErrInvalidTemplate)
	case strings.TrimSpace(tpl.Name) == "":
		return fmt.Errorf("%w: template name is required", entity.ErrInvalidTemplate)
	case len(tpl.Stages) == 0:
		return fmt.Errorf("%w: template must have at least one stage", entity.ErrInvalidTemplate)
	}

	seen := make(map[string]struct{}, len(tpl.Stages))
	for i, st := range tpl.Stages {
		if st.ID == "" {
			return fmt.Errorf("%w: stage %d has no id", entity.ErrInvalidTemplate, i+1)
		}
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("%w: duplicate stage %s", entity.ErrInvalidTemplate, st.ID)
		}
		seen[st.ID] = struct{}{}
	}
	return nil
}
