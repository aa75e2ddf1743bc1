package eligibility

import "testing"

func TestResolveKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Jogging Pants", "jogging pants"},
		{"jogging  pants", "jogging pants"},
		{"  JOGGING\tPants ", "jogging pants"},
		{"Logo Patch", "logo patch"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveKey(tt.name); got != tt.want {
			t.Errorf("ResolveKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if ResolveKey("Jogging Pants") != ResolveKey("jogging  pants") {
		t.Error("expected cosmetic variants to resolve to the same key")
	}
}

func TestDefaultMaxFor(t *testing.T) {
	if got := DefaultMaxFor("logo patch"); got != 3 {
		t.Errorf("expected logo patch default 3, got %d", got)
	}
	if got := DefaultMaxFor("polo shirt"); got != 1 {
		t.Errorf("expected unknown item default 1, got %d", got)
	}
}
