package types

import "testing"

func TestValidateSpecID(t *testing.T) {
	valid := []string{
		"core-001-user-auth",
		"API-002-rest-endpoints",
		"db-12-schema",
		"ui2-003-settings-page",
	}
	for _, id := range valid {
		if err := ValidateSpecID(id); err != nil {
			t.Errorf("expected %q to be valid: %v", id, err)
		}
	}

	invalid := []string{
		"",
		"core",
		"core-001",
		"-001-slug",
		"core-abc-slug",
		"core-001-",
		"core 001 slug",
	}
	for _, id := range invalid {
		if err := ValidateSpecID(id); err == nil {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}

func TestComponentOf(t *testing.T) {
	if got := ComponentOf("core-001-user-auth"); got != "core" {
		t.Errorf("expected core, got %q", got)
	}
	if got := ComponentOf("nodash"); got != "" {
		t.Errorf("expected empty component, got %q", got)
	}
}

func TestSpecValidate(t *testing.T) {
	spec := &Spec{
		ID:        "core-001-user-auth",
		Component: "core",
		Status:    StatusNotStarted,
		Weight:    WeightStandard,
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected valid spec: %v", err)
	}

	spec.Status = Status("bogus")
	if err := spec.Validate(); err == nil {
		t.Error("expected invalid status to be rejected")
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusNotStarted, StatusInProgress, StatusComplete} {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("blocked").IsValid() {
		t.Error("blocked is derived, not a stored status")
	}
}

func TestWorktreeStateTerminal(t *testing.T) {
	if WorktreeActive.Terminal() || WorktreeCreated.Terminal() {
		t.Error("created/active are not terminal")
	}
	if !WorktreeMerged.Terminal() || !WorktreeAbandoned.Terminal() {
		t.Error("merged/abandoned are terminal")
	}
}

func TestTaskValidate(t *testing.T) {
	task := &Task{SpecID: "core-001-user-auth", Title: "wire login handler"}
	if err := task.Validate(); err != nil {
		t.Fatalf("expected valid task: %v", err)
	}

	task.Title = "   "
	if err := task.Validate(); err == nil {
		t.Error("expected blank title to be rejected")
	}

	neg := -5
	task.Title = "x"
	task.ActualMinutes = &neg
	if err := task.Validate(); err == nil {
		t.Error("expected negative minutes to be rejected")
	}
}
