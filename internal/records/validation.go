package records

import (
	"fmt"
	"net/url"
	"regexp"
)

const (
	MaxNameLength = 50
	MaxURLLength  = 100
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateName checks that name is usable as an output directory name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, MaxNameLength)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: name %q is reserved", ErrInvalid, name)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q may only contain letters, digits, '.', '_' and '-'", ErrInvalid, name)
	}
	return nil
}

// ValidateSourceURL checks the source URL length and that it has a scheme.
func ValidateSourceURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: url is required", ErrInvalid)
	}
	if len(raw) > MaxURLLength {
		return fmt.Errorf("%w: url exceeds %d characters", ErrInvalid, MaxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalid, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: url %q has no scheme", ErrInvalid, raw)
	}
	return nil
}

// Validate checks create parameters.
func (p CreateParams) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	return ValidateSourceURL(p.SourceURL)
}

// Validate checks the fields present in an update.
func (p UpdateParams) Validate() error {
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.SourceURL != nil {
		if err := ValidateSourceURL(*p.SourceURL); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns r with the update's fields applied.
func (p UpdateParams) Apply(r Record) Record {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.SourceURL != nil {
		r.SourceURL = *p.SourceURL
	}
	return r
}
