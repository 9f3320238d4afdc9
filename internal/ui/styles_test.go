package ui

import "testing"

func TestNormalizeAccentColor(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "", ok: false},
		{input: "none", ok: false},
		{input: "OFF", ok: false},
		{input: "default", ok: false},
		{input: "212", want: "212", ok: true},
		{input: " 0 ", want: "0", ok: true},
		{input: "300", ok: false},
		{input: "-4", ok: false},
		{input: "#A78BFA", want: "#a78bfa", ok: true},
		{input: "#f0a", want: "#ff00aa", ok: true},
		{input: "#12345g", ok: false},
		{input: "purple", ok: false},
	}

	for _, tt := range tests {
		got, ok := normalizeAccentColor(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("normalizeAccentColor(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConfigureThemeTogglesAccent(t *testing.T) {
	origAccent, origColor := Accent, accentColor
	t.Cleanup(func() {
		Accent, accentColor = origAccent, origColor
	})

	ConfigureTheme("#abc")
	if got, ok := AccentColor(); !ok || got != "#aabbcc" {
		t.Fatalf("AccentColor() = (%q, %v), want #aabbcc", got, ok)
	}

	ConfigureTheme("off")
	if got, ok := AccentColor(); ok {
		t.Fatalf("AccentColor() = %q after disabling", got)
	}
}
