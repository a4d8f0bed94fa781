package models

import (
	"encoding/json"
	"regexp"
	"sort"
	"time"

	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: TEMPLATE STATUS ****/
/************************************************/
const TEMPLATE_STATUS_APPROVED = "approved"
const TEMPLATE_STATUS_PENDING = "pending"
const TEMPLATE_STATUS_REJECTED = "rejected"

// Template is a provider-approved message skeleton with named variable
// slots. Only approved templates are sendable.
type Template struct {
	ID       int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Platform string `gorm:"not null;unique_index:idx_templates_identity" json:"platform"`
	Name     string `gorm:"not null;unique_index:idx_templates_identity" json:"name"`
	Language string `gorm:"not null;unique_index:idx_templates_identity" json:"language"`
	Category string `json:"category,omitempty"`
	Body     string `gorm:"type:text" json:"body"`
	// Variables is a JSON-encoded ordered list of slot names. The order is
	// the provider's positional parameter order; never rely on map
	// iteration when building send payloads.
	Variables string     `gorm:"type:text" json:"variables"`
	Status    string     `gorm:"not null;default:'pending'" json:"status"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

var templateVarPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// VariableSlots decodes the ordered slot list, falling back to extracting
// slots from the body for templates synced before variables were recorded.
func (t Template) VariableSlots() []string {
	var slots []string
	if t.Variables != "" {
		if err := json.Unmarshal([]byte(t.Variables), &slots); err == nil {
			return slots
		}
	}
	return ExtractVariableSlots(t.Body)
}

// ExtractVariableSlots returns the {{slot}} names of a template body in
// order of first appearance.
func ExtractVariableSlots(body string) []string {
	seen := map[string]bool{}
	var slots []string
	for _, m := range templateVarPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			slots = append(slots, name)
		}
	}
	return slots
}

// RenderTemplate substitutes {{slot}} markers with the given values.
// A missing variable renders as "[slot]" so previews make the gap obvious
// instead of silently dropping it.
func RenderTemplate(body string, variables map[string]string) string {
	return templateVarPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := templateVarPattern.FindStringSubmatch(match)[1]
		if v, ok := variables[name]; ok {
			return v
		}
		return "[" + name + "]"
	})
}

// OrderedParameters maps a variables map onto the provider's positional
// parameter list. When the template is registered the registered slot order
// wins; otherwise sorted key order keeps the result deterministic.
func OrderedParameters(t *Template, variables map[string]string) []string {
	if len(variables) == 0 {
		return nil
	}

	var slots []string
	if t != nil {
		slots = t.VariableSlots()
	}
	if len(slots) == 0 {
		for name := range variables {
			slots = append(slots, name)
		}
		sort.Strings(slots)
	}

	params := make([]string, 0, len(slots))
	for _, name := range slots {
		if v, ok := variables[name]; ok {
			params = append(params, v)
		} else {
			params = append(params, "["+name+"]")
		}
	}
	return params
}

// FindTemplate looks a template up by identity. Returns nil (not an error)
// when the registry has no row, since the provider stays authoritative.
func FindTemplate(database *gorm.DB, platform string, name string, language string) (*Template, error) {
	var t Template
	err := database.
		Where("platform = ? AND name = ? AND language = ?", platform, name, language).
		First(&t).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTemplate refreshes the registry row for a template pulled from the
// provider.
func UpsertTemplate(database *gorm.DB, t *Template) error {
	var existing Template
	err := database.
		Where("platform = ? AND name = ? AND language = ?", t.Platform, t.Name, t.Language).
		First(&existing).Error
	if gorm.IsRecordNotFoundError(err) {
		return database.Create(t).Error
	}
	if err != nil {
		return err
	}
	return database.Model(&Template{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"category":  t.Category,
		"body":      t.Body,
		"variables": t.Variables,
		"status":    t.Status,
	}).Error
}
