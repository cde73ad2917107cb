package main

import (
	"strings"
	"testing"
)

func fakeEnv(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, fakeEnv(map[string]string{"GEMINI_API_KEY": "k"}))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Mode != "voice" {
		t.Errorf("mode = %q, want voice", cfg.Mode)
	}
	if cfg.Persona != "laura" {
		t.Errorf("persona = %q, want laura", cfg.Persona)
	}
	if cfg.APIKey != "k" {
		t.Errorf("api key = %q", cfg.APIKey)
	}
	if cfg.HasLoc {
		t.Error("location set without input")
	}
}

func TestParseConfigGoogleKeyFallback(t *testing.T) {
	cfg, err := parseConfig(nil, fakeEnv(map[string]string{"GOOGLE_API_KEY": "g"}))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.APIKey != "g" {
		t.Errorf("api key = %q, want g", cfg.APIKey)
	}
}

func TestParseConfigMissingKey(t *testing.T) {
	_, err := parseConfig(nil, fakeEnv(nil))
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestParseConfigLocation(t *testing.T) {
	t.Run("from flags", func(t *testing.T) {
		cfg, err := parseConfig(
			[]string{"-mode", "chat", "-lat", "40.4168", "-lng", "-3.7038"},
			fakeEnv(map[string]string{"GEMINI_API_KEY": "k"}),
		)
		if err != nil {
			t.Fatalf("parseConfig: %v", err)
		}
		if !cfg.HasLoc || cfg.Lat != 40.4168 || cfg.Lng != -3.7038 {
			t.Errorf("location = %+v", cfg)
		}
	})

	t.Run("from env", func(t *testing.T) {
		cfg, err := parseConfig([]string{"-mode", "chat"}, fakeEnv(map[string]string{
			"GEMINI_API_KEY": "k",
			"AMIGO_LAT":      "41.39",
			"AMIGO_LNG":      "2.17",
		}))
		if err != nil {
			t.Fatalf("parseConfig: %v", err)
		}
		if !cfg.HasLoc || cfg.Lat != 41.39 || cfg.Lng != 2.17 {
			t.Errorf("location = %+v", cfg)
		}
	})

	t.Run("lat without lng", func(t *testing.T) {
		_, err := parseConfig(
			[]string{"-mode", "chat", "-lat", "40.0"},
			fakeEnv(map[string]string{"GEMINI_API_KEY": "k"}),
		)
		if err == nil {
			t.Fatal("expected error for half a coordinate")
		}
	})
}

func TestParseConfigModeValidation(t *testing.T) {
	env := fakeEnv(map[string]string{"GEMINI_API_KEY": "k"})
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown mode", []string{"-mode", "video"}, "unknown mode"},
		{"unknown persona", []string{"-persona", "carlos"}, "unknown persona"},
		{"unknown tier", []string{"-mode", "chat", "-tier", "turbo"}, "unknown tier"},
		{"edit without image", []string{"-mode", "edit", "-prompt", "p", "-out", "o.png"}, "-image"},
		{"edit without prompt", []string{"-mode", "edit", "-image", "i.png", "-out", "o.png"}, "-prompt"},
		{"edit without out", []string{"-mode", "edit", "-image", "i.png", "-prompt", "p"}, "-out"},
		{"speak without text", []string{"-mode", "speak"}, "-text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args, env)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseConfigEditMode(t *testing.T) {
	cfg, err := parseConfig(
		[]string{"-mode", "edit", "-image", "cat.png", "-prompt", "add a hat", "-out", "cat-hat.png"},
		fakeEnv(map[string]string{"GEMINI_API_KEY": "k"}),
	)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.ImagePath != "cat.png" || cfg.Instruction != "add a hat" || cfg.OutPath != "cat-hat.png" {
		t.Errorf("edit config = %+v", cfg)
	}
}

func TestPersonaByName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"laura", "Laura", false},
		{"Nicole", "Nicole", false},
		{"  NICOLE  ", "Nicole", false},
		{"carlos", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := personaByName(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("personaByName: %v", err)
			}
			if p.Name != tt.want {
				t.Errorf("persona = %q, want %q", p.Name, tt.want)
			}
		})
	}
}

func TestLoadAttachmentMissingFile(t *testing.T) {
	if _, err := loadAttachment("does-not-exist.png"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
