package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"virtualfit/internal/domain"
)

// ReadFile parses a profile from a .yaml, .yml or .json file and validates it.
func ReadFile(path string) (*domain.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewSubSystemError("profile", "profile.ReadFile", domain.ErrNotFound, err.Error())
	}
	p, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse decodes a profile. ext selects the format; anything other than
// ".json" is read as YAML, which also accepts JSON.
func Parse(data []byte, ext string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, domain.NewSubSystemError("profile", "profile.Parse", domain.ErrInvalidInput, fmt.Sprintf("parse json: %v", err))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, domain.NewSubSystemError("profile", "profile.Parse", domain.ErrInvalidInput, fmt.Sprintf("parse yaml: %v", err))
		}
	}
	return &p, nil
}

// Marshal renders p as YAML for display.
func Marshal(p *domain.UserProfile) ([]byte, error) {
	return yaml.Marshal(p)
}
