package confkit_test

import (
	"os"
	"path/filepath"
	"testing"

	"wattline/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		file     string
		expected string
	}{
		{
			name:     "absolute path",
			base:     "/base/dir",
			file:     "/absolute/path/pricing.yaml",
			expected: "/absolute/path/pricing.yaml",
		},
		{
			name:     "relative path",
			base:     "/base/dir",
			file:     "pricing.yaml",
			expected: "/base/dir/pricing.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confkit.ResolvePath(tt.base, tt.file); got != tt.expected {
				t.Errorf("ResolvePath() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResolvePathExpandsEnv(t *testing.T) {
	t.Setenv("WATTLINE_CONF_DIR", "/opt/wattline")
	got := confkit.ResolvePath("/base/dir", "${WATTLINE_CONF_DIR}/pricing.yaml")
	if got != "/opt/wattline/pricing.yaml" {
		t.Errorf("ResolvePath() = %v, want /opt/wattline/pricing.yaml", got)
	}

	t.Setenv("WATTLINE_CONF_REL", "tariffs")
	got = confkit.ResolvePath("/base/dir", "${WATTLINE_CONF_REL}/pricing.yaml")
	want := filepath.Join("/base/dir", "tariffs", "pricing.yaml")
	if got != want {
		t.Errorf("ResolvePath() = %v, want %v", got, want)
	}
}

func TestBaseDir(t *testing.T) {
	if got := confkit.BaseDir("/etc/wattline/wattline.yaml"); got != "/etc/wattline" {
		t.Errorf("BaseDir() = %v, want /etc/wattline", got)
	}
	if got := confkit.BaseDir("etc/wattline.yaml"); got != "etc" {
		t.Errorf("BaseDir() = %v, want etc", got)
	}
}

func TestSectionHydrate(t *testing.T) {
	t.Run("empty file is a no-op", func(t *testing.T) {
		section := &confkit.Section[string]{}
		err := section.Hydrate("/base", func(path string) (*string, error) {
			t.Error("loader should not be called for empty file")
			return nil, nil
		})
		if err != nil {
			t.Errorf("Hydrate() error = %v, want nil", err)
		}
		if section.Value != nil {
			t.Error("Value should remain nil for empty file")
		}
	})

	t.Run("loads via the supplied loader", func(t *testing.T) {
		section := &confkit.Section[string]{File: "pricing.yaml"}
		expected := "hydrated"

		err := section.Hydrate("/base", func(path string) (*string, error) {
			if path != "/base/pricing.yaml" {
				t.Errorf("loader received path %v, want /base/pricing.yaml", path)
			}
			return &expected, nil
		})
		if err != nil {
			t.Errorf("Hydrate() error = %v, want nil", err)
		}
		if section.Value == nil || *section.Value != expected {
			t.Errorf("Value = %v, want %v", section.Value, expected)
		}
		if section.File != "/base/pricing.yaml" {
			t.Errorf("File = %v, want /base/pricing.yaml", section.File)
		}
	})
}

func TestProjectPath(t *testing.T) {
	p, err := confkit.ProjectPath("etc/wattline.yaml")
	if err != nil {
		t.Fatalf("ProjectPath() error = %v", err)
	}
	if filepath.Base(p) != "wattline.yaml" {
		t.Errorf("ProjectPath() = %v, want a path ending in wattline.yaml", p)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(p)), "go.mod")); err != nil {
		t.Errorf("ProjectPath() root missing go.mod: %v", err)
	}
}
