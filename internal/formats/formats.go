// Package formats holds the social-media target formats images are rendered into
package formats

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a named rendering target
type Format struct {
	Name        string `yaml:"name" json:"name"`
	Width       int    `yaml:"width" json:"width"`
	Height      int    `yaml:"height" json:"height"`
	AspectRatio string `yaml:"aspectRatio" json:"aspectRatio"`
}

// Set is an ordered list of formats
type Set []Format

// Defaults returns the built-in format set
func Defaults() Set {
	return Set{
		{Name: "Instagram Square (1:1)", Width: 1080, Height: 1080, AspectRatio: "1:1"},
		{Name: "Instagram Portrait (4:5)", Width: 1080, Height: 1350, AspectRatio: "4:5"},
		{Name: "Twitter Post (16:9)", Width: 1200, Height: 675, AspectRatio: "16:9"},
		{Name: "Twitter Header (3:1)", Width: 1500, Height: 500, AspectRatio: "3:1"},
		{Name: "Facebook Cover (205:78)", Width: 820, Height: 312, AspectRatio: "205:78"},
	}
}

// Load reads a YAML file of formats. An empty path returns the defaults.
//
//	formats:
//	  - name: Instagram Square (1:1)
//	    width: 1080
//	    height: 1080
//	    aspectRatio: "1:1"
func Load(path string) (Set, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read formats file: %w", err)
	}

	var doc struct {
		Formats Set `yaml:"formats"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse formats file: %w", err)
	}
	if len(doc.Formats) == 0 {
		return nil, fmt.Errorf("formats file %s defines no formats", path)
	}
	if err := doc.Formats.Validate(); err != nil {
		return nil, err
	}

	return doc.Formats, nil
}

// Validate checks names are unique and dimensions are positive
func (s Set) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("format name is required")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate format %q", f.Name)
		}
		seen[f.Name] = true
		if f.Width <= 0 || f.Height <= 0 {
			return fmt.Errorf("format %q: width and height must be positive", f.Name)
		}
		if f.AspectRatio != "" {
			if _, err := ParseAspectRatio(f.AspectRatio); err != nil {
				return fmt.Errorf("format %q: %w", f.Name, err)
			}
		}
	}
	return nil
}

// Lookup finds a format by name
func (s Set) Lookup(name string) (Format, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Format{}, false
}

// Names returns the format names in order
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// whitespace matches the same characters as a JavaScript \s class, which
// includes vertical tab and Unicode spaces that RE2's \s leaves out
var whitespace = regexp.MustCompile(`[\s\v\x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}]+`)

// FileName derives the download file name of a rendering from its format name:
// whitespace runs become underscores, the result is lower-cased and gets a .png suffix.
func FileName(formatName string) string {
	return strings.ToLower(whitespace.ReplaceAllString(formatName, "_")) + ".png"
}

// ParseAspectRatio parses "w:h" into w/h
func ParseAspectRatio(ar string) (float64, error) {
	parts := strings.Split(ar, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid aspect ratio %q", ar)
	}
	w, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || w <= 0 {
		return 0, fmt.Errorf("invalid aspect ratio %q", ar)
	}
	h, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || h <= 0 {
		return 0, fmt.Errorf("invalid aspect ratio %q", ar)
	}
	return w / h, nil
}
