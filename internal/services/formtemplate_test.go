package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFormTemplateService_Defaults(t *testing.T) {
	t.Setenv("FORM_TEMPLATE_PATH", "")

	svc, err := NewFormTemplateService(context.Background(), testLogger(t), nil)
	if err != nil {
		t.Fatalf("NewFormTemplateService: %v", err)
	}
	fields := svc.Fields()
	if len(fields) == 0 {
		t.Fatalf("default catalog is empty")
	}
	if fields[0].Name != "license_no" {
		t.Fatalf("first field = %q, want license_no", fields[0].Name)
	}
}

func TestFormTemplateService_LoadsYAMLInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.yaml")
	content := `name: transport-pass
version: 3
fields:
  - name: vehicle_no
    label: Vehicle No
    type: text
    required: true
  - name: destination_address
    label: Destination Address
    type: text
    required: true
    wrap: true
  - name: quantity
    label: Quantity (MT)
    type: number
    required: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	t.Setenv("FORM_TEMPLATE_PATH", path)

	svc, err := NewFormTemplateService(context.Background(), testLogger(t), nil)
	if err != nil {
		t.Fatalf("NewFormTemplateService: %v", err)
	}
	if svc.Version() != 3 {
		t.Fatalf("version = %d, want 3", svc.Version())
	}
	fields := svc.Fields()
	wantOrder := []string{"vehicle_no", "destination_address", "quantity"}
	if len(fields) != len(wantOrder) {
		t.Fatalf("len(fields) = %d, want %d", len(fields), len(wantOrder))
	}
	for i, name := range wantOrder {
		if fields[i].Name != name {
			t.Fatalf("fields[%d] = %q, want %q (order must be preserved)", i, fields[i].Name, name)
		}
	}
	if !fields[1].Wrap {
		t.Fatalf("destination_address should wrap")
	}
}

func TestFormTemplateService_RejectsBrokenCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("fields:\n  - label: No Name\n"), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	t.Setenv("FORM_TEMPLATE_PATH", path)

	if _, err := NewFormTemplateService(context.Background(), testLogger(t), nil); err == nil {
		t.Fatalf("expected error for field without name")
	}
}

func TestFormTemplateService_FieldsReturnsCopy(t *testing.T) {
	t.Setenv("FORM_TEMPLATE_PATH", "")
	svc, err := NewFormTemplateService(context.Background(), testLogger(t), nil)
	if err != nil {
		t.Fatalf("NewFormTemplateService: %v", err)
	}
	fields := svc.Fields()
	fields[0].Name = "mutated"
	if svc.Fields()[0].Name == "mutated" {
		t.Fatalf("Fields() exposes internal slice")
	}
}
