package services

import (
	"embed"
	"fmt"
	"image/color"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const certificateThemeEnv = "CERTIFICATE_THEME_YAML"

//go:embed certificate_theme.yaml
var certificateThemeFS embed.FS

// CertificateTheme is the visual layout of a rendered certificate. The
// embedded default ships with the binary; CERTIFICATE_THEME_YAML points at a
// replacement file for per-deployment branding.
type CertificateTheme struct {
	Theme   string `yaml:"theme"`
	Version int    `yaml:"version"`

	Background  string `yaml:"background"`
	TextColor   string `yaml:"text_color"`
	NameColor   string `yaml:"name_color"`
	AccentColor string `yaml:"accent_color"`

	Border struct {
		Color string  `yaml:"color"`
		Width float64 `yaml:"width"`
		Inset float64 `yaml:"inset"`
	} `yaml:"border"`

	Heading        string `yaml:"heading"`
	Subheading     string `yaml:"subheading"`
	CompletionLine string `yaml:"completion_line"`
	DateFormat     string `yaml:"date_format"`

	FontSizes struct {
		Heading float64 `yaml:"heading"`
		Name    float64 `yaml:"name"`
		Body    float64 `yaml:"body"`
		Title   float64 `yaml:"title"`
		Serial  float64 `yaml:"serial"`
	} `yaml:"font_sizes"`
}

// LoadCertificateTheme reads the override path when set, otherwise the
// embedded default. A malformed override fails loudly instead of silently
// shipping the wrong branding.
func LoadCertificateTheme() (*CertificateTheme, error) {
	data, err := readCertificateThemeBytes()
	if err != nil {
		return nil, err
	}
	theme := &CertificateTheme{}
	if err := yaml.Unmarshal(data, theme); err != nil {
		return nil, fmt.Errorf("decode certificate theme: %w", err)
	}
	theme.applyDefaults()
	return theme, nil
}

func readCertificateThemeBytes() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(certificateThemeEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read certificate theme override: %w", err)
		}
		return data, nil
	}
	return certificateThemeFS.ReadFile("certificate_theme.yaml")
}

func (t *CertificateTheme) applyDefaults() {
	if t.Background == "" {
		t.Background = "#FFFFFF"
	}
	if t.TextColor == "" {
		t.TextColor = "#1F2933"
	}
	if t.NameColor == "" {
		t.NameColor = t.TextColor
	}
	if t.AccentColor == "" {
		t.AccentColor = t.NameColor
	}
	if t.Border.Color == "" {
		t.Border.Color = t.NameColor
	}
	if t.Border.Width <= 0 {
		t.Border.Width = 8
	}
	if t.Border.Inset <= 0 {
		t.Border.Inset = 32
	}
	if t.Heading == "" {
		t.Heading = "Certificate of Completion"
	}
	if t.Subheading == "" {
		t.Subheading = "This certifies that"
	}
	if t.CompletionLine == "" {
		t.CompletionLine = "has successfully completed the course"
	}
	if t.DateFormat == "" {
		t.DateFormat = "January 2, 2006"
	}
	if t.FontSizes.Heading <= 0 {
		t.FontSizes.Heading = 64
	}
	if t.FontSizes.Name <= 0 {
		t.FontSizes.Name = 72
	}
	if t.FontSizes.Body <= 0 {
		t.FontSizes.Body = 34
	}
	if t.FontSizes.Title <= 0 {
		t.FontSizes.Title = 48
	}
	if t.FontSizes.Serial <= 0 {
		t.FontSizes.Serial = 22
	}
}

func parseThemeColor(s string) (color.NRGBA, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if len(raw) != 6 {
		return color.NRGBA{}, fmt.Errorf("expected #RRGGBB, got %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(raw, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
