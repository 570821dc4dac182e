// internal/journal/resolver.go
package journal

import (
	"fmt"
	"path"
	"time"

	"github.com/jpfieber/sleepsync/internal/config"
	"github.com/jpfieber/sleepsync/internal/vault"
)

// Category is one output document category (daily journal or sleep note)
// with its path templates and entry formats.
type Category struct {
	Name           string
	Folder         string
	Subfolder      string
	NameTemplate   string
	TemplatePath   string
	AsleepTemplate string
	AwakeTemplate  string
	Prefix         string
}

// CategoryFromConfig builds a Category from its config block.
func CategoryFromConfig(name string, cc config.CategoryConfig) Category {
	return Category{
		Name:           name,
		Folder:         cc.Folder,
		Subfolder:      cc.Subfolder,
		NameTemplate:   cc.NameTemplate,
		TemplatePath:   cc.TemplatePath,
		AsleepTemplate: cc.AsleepTemplate,
		AwakeTemplate:  cc.AwakeTemplate,
		Prefix:         cc.PrefixLetter,
	}
}

// Target is a resolved document destination.
type Target struct {
	Path           string
	AlreadyExisted bool
}

// Resolve maps a calendar date (YYYY-MM-DD) to the category's document
// path: folder/subfolder/name.md, with date tokens in the subfolder and
// name templates rendered against the date at local noon, so a timezone
// offset can never shift the resolved day. Same (date, category) always
// yields the same path; storage is not touched.
func Resolve(date string, cat Category, loc *time.Location) (string, error) {
	noon, err := NoonOf(date, loc)
	if err != nil {
		return "", err
	}

	name := vault.FormatDate(cat.NameTemplate, noon)
	if name == "" {
		return "", fmt.Errorf("category %s has an empty name template", cat.Name)
	}

	parts := []string{cat.Folder}
	if cat.Subfolder != "" {
		parts = append(parts, vault.FormatDate(cat.Subfolder, noon))
	}
	parts = append(parts, name+".md")
	return path.Join(parts...), nil
}

// NoonOf parses a YYYY-MM-DD date and returns noon of that day in loc.
func NoonOf(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t.Add(12 * time.Hour), nil
}
