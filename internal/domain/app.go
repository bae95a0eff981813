package domain

import (
	"fmt"
	"strings"
	"time"
)

// App represents one cataloged web application.
//
// Records are only ever produced by a document store: the id and the
// timestamps are assigned server-side and never set by callers.
type App struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned by the store on creation and stable for the
	// lifetime of the record.
	ID string `json:"id"`

	// ─────────────────────────────
	// Catalog fields
	// ─────────────────────────────

	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Category    Category `json:"category"`

	// Image is empty or a persistent URL (blob store, photo CDN or
	// screenshot service). Ephemeral preview handles are never stored.
	Image string `json:"image"`

	// ─────────────────────────────
	// Server timestamps
	// ─────────────────────────────

	// CreatedAt is set once, on creation.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is nil until the first update.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Fields returns the writable part of the record.
func (a App) Fields() AppFields {
	return AppFields{
		Name:        a.Name,
		URL:         a.URL,
		Description: a.Description,
		Category:    a.Category,
		Image:       a.Image,
	}
}

// AppFields is the document body written on creation.
type AppFields struct {
	Name        string   `json:"name" yaml:"name"`
	URL         string   `json:"url" yaml:"url"`
	Description string   `json:"description" yaml:"description"`
	Category    Category `json:"category" yaml:"category"`
	Image       string   `json:"image" yaml:"image"`
}

// Validate checks the invariants a stored record must hold.
// URL normalization is the caller's job; an empty URL is rejected here.
func (f AppFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidApp)
	}
	if strings.TrimSpace(f.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidApp)
	}
	if !f.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidApp, f.Category)
	}
	return nil
}

// AppPatch is a partial update. Nil fields are left untouched.
type AppPatch struct {
	Name        *string   `json:"name,omitempty"`
	URL         *string   `json:"url,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Image       *string   `json:"image,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p AppPatch) IsEmpty() bool {
	return p.Name == nil && p.URL == nil && p.Description == nil && p.Category == nil && p.Image == nil
}

// ApplyTo merges the patch over f and returns the result.
func (p AppPatch) ApplyTo(f AppFields) AppFields {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.URL != nil {
		f.URL = *p.URL
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Image != nil {
		f.Image = *p.Image
	}
	return f
}

// PatchFrom builds a patch that sets every field of f.
func PatchFrom(f AppFields) AppPatch {
	return AppPatch{
		Name:        &f.Name,
		URL:         &f.URL,
		Description: &f.Description,
		Category:    &f.Category,
		Image:       &f.Image,
	}
}

// Asset is a locally supplied image file waiting to be uploaded.
type Asset struct {
	Data        []byte
	ContentType string
	Filename    string
}

// AppInput is what a caller submits to create an app.
// Upload, when set, takes priority over Image and over a generated screenshot.
type AppInput struct {
	AppFields
	Upload *Asset
}
