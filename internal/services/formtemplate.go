package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/emineral/emineral-backend/internal/data/repos"
	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

// FormField is one entry of the regulatory field catalog. Order matters: the
// printed pass lays fields out in catalog order.
type FormField struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Type     string `yaml:"type" json:"type"`
	Required bool   `yaml:"required" json:"required"`
	Wrap     bool   `yaml:"wrap,omitempty" json:"wrap,omitempty"`
}

type formTemplateFile struct {
	Name    string      `yaml:"name"`
	Version int         `yaml:"version"`
	Fields  []FormField `yaml:"fields"`
}

// FormTemplateService serves the ordered field catalog. The record core
// treats form data as opaque; only the renderer and the public API consume
// the catalog.
type FormTemplateService interface {
	Fields() []FormField
	Name() string
	Version() int
}

type formTemplateService struct {
	log     *logger.Logger
	name    string
	version int
	fields  []FormField
}

// defaultFormFields covers the statutory transport-pass form when no catalog
// file is configured.
var defaultFormFields = []FormField{
	{Name: "license_no", Label: "License No", Type: "text", Required: true},
	{Name: "license_holder_name", Label: "License Holder", Type: "text", Required: true},
	{Name: "vehicle_no", Label: "Vehicle No", Type: "text", Required: true},
	{Name: "driver_name", Label: "Driver Name", Type: "text", Required: false},
	{Name: "mineral_name", Label: "Mineral", Type: "text", Required: true, Wrap: true},
	{Name: "quantity", Label: "Quantity (MT)", Type: "number", Required: true},
	{Name: "source_location", Label: "Source", Type: "text", Required: true},
	{Name: "destination_address", Label: "Destination Address", Type: "text", Required: true, Wrap: true},
	{Name: "distance_km", Label: "Distance (KM)", Type: "number", Required: false},
}

// NewFormTemplateService loads FORM_TEMPLATE_PATH when set, otherwise the
// built-in catalog, and best-effort syncs the result into the form_template
// table so operators can inspect what the process is serving.
func NewFormTemplateService(ctx context.Context, baseLog *logger.Logger, templateRepo repos.FormTemplateRepo) (FormTemplateService, error) {
	serviceLog := baseLog.With("service", "FormTemplateService")

	svc := &formTemplateService{
		log:     serviceLog,
		name:    "transport-pass",
		version: 1,
		fields:  defaultFormFields,
	}

	path := strings.TrimSpace(os.Getenv("FORM_TEMPLATE_PATH"))
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read form template %s: %w", path, err)
		}
		var parsed formTemplateFile
		if err := yaml.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("parse form template %s: %w", path, err)
		}
		if len(parsed.Fields) == 0 {
			return nil, fmt.Errorf("form template %s has no fields", path)
		}
		for i, f := range parsed.Fields {
			if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Label) == "" {
				return nil, fmt.Errorf("form template %s: field %d missing name or label", path, i)
			}
		}
		if parsed.Name != "" {
			svc.name = parsed.Name
		}
		if parsed.Version > 0 {
			svc.version = parsed.Version
		}
		svc.fields = parsed.Fields
	}

	svc.syncToDB(ctx, templateRepo)
	return svc, nil
}

func (s *formTemplateService) syncToDB(ctx context.Context, templateRepo repos.FormTemplateRepo) {
	if templateRepo == nil {
		return
	}
	active, err := templateRepo.GetActive(ctx, nil)
	if err == nil && active.Name == s.name && active.Version >= s.version {
		return
	}

	raw, err := json.Marshal(s.fields)
	if err != nil {
		s.log.Warn("form template serialize failed; db sync skipped", "error", err)
		return
	}
	_, err = templateRepo.Upsert(ctx, nil, &domain.FormTemplate{
		ID:      uuid.New(),
		Name:    s.name,
		Version: s.version,
		Fields:  datatypes.JSON(raw),
		Active:  true,
	})
	if err != nil {
		s.log.Warn("form template db sync failed", "name", s.name, "version", s.version, "error", err)
	}
}

func (s *formTemplateService) Fields() []FormField {
	out := make([]FormField, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *formTemplateService) Name() string { return s.name }

func (s *formTemplateService) Version() int { return s.version }
