package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"zh-CN", "zh"},
		{"eng", "en"},
		{"fra", "fr"},
		{"english", "en"},
		{"chinese", "zh"},
		{"", ""},
		{"not a language", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.input); got != tt.expected {
			t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestToISO3(t *testing.T) {
	if got := ToISO3("zh-CN"); got != "zho" {
		t.Fatalf("ToISO3(zh-CN) = %q", got)
	}
	if got := ToISO3(""); got != "und" {
		t.Fatalf("ToISO3(empty) = %q", got)
	}
}

func TestScript(t *testing.T) {
	tests := map[string]string{
		"zh-CN": "Hans",
		"zh-TW": "Hant",
		"ja":    "Jpan",
		"ko":    "Kore",
		"ru":    "Cyrl",
		"en":    "Latn",
	}
	for code, want := range tests {
		if got := Script(code); got != want {
			t.Errorf("Script(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestInLocalScript(t *testing.T) {
	tests := []struct {
		text   string
		target string
		want   bool
	}{
		{"汤姆", "zh-CN", true},
		{"Tom", "zh-CN", false},
		{"Tom 汤姆", "zh-CN", true},
		{"トム", "ja", true},
		{"톰", "ko", true},
		{"Том", "ru", true},
		{"Tom", "ru", false},
		{"Tom", "en", true},
		{"", "zh-CN", false},
		{"Tom", "", false},
	}
	for _, tt := range tests {
		if got := InLocalScript(tt.text, tt.target); got != tt.want {
			t.Errorf("InLocalScript(%q, %q) = %v, want %v", tt.text, tt.target, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("zh-CN"); got == "" || got == "ZH-CN" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(empty) = %q", got)
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"eng", "en", "zh-CN", "", "bogus words"})
	if len(got) != 2 || got[0] != "en" || got[1] != "zh" {
		t.Fatalf("unexpected list %v", got)
	}
}
