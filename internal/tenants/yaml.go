package tenants

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// onboardingForm is the operator-facing YAML shape for creating or editing
// a tenant. Sources are a YAML sequence rather than a map so that document
// order becomes SourceOrder directly, instead of relying on a map-ordering
// convention this package would otherwise have to invent.
type onboardingForm struct {
	TenantSlug   string `yaml:"tenant_slug"`
	BusinessName string `yaml:"business_name"`
	Sources      []struct {
		Name    string `yaml:"name"`
		Enabled bool   `yaml:"enabled"`
		Logic   string `yaml:"logic,omitempty"`
	} `yaml:"sources"`
}

// ParseOnboardingYAML decodes an operator-authored onboarding form into a
// TenantConfig with status onboarding. It does not write to the store; the
// caller passes the result to Store.Upsert.
func ParseOnboardingYAML(doc []byte) (TenantConfig, error) {
	var form onboardingForm
	if err := yaml.Unmarshal(doc, &form); err != nil {
		return TenantConfig{}, fmt.Errorf("parsing onboarding form: %w", err)
	}
	if form.TenantSlug == "" {
		return TenantConfig{}, fmt.Errorf("onboarding form missing tenant_slug")
	}

	cfg := TenantConfig{
		Slug:         form.TenantSlug,
		BusinessName: form.BusinessName,
		Status:       StatusOnboarding,
		Sources:      make(map[string]SourceConfig, len(form.Sources)),
		SourceOrder:  make([]string, 0, len(form.Sources)),
	}
	for _, src := range form.Sources {
		cfg.Sources[src.Name] = SourceConfig{Enabled: src.Enabled, Logic: src.Logic}
		cfg.SourceOrder = append(cfg.SourceOrder, src.Name)
	}
	return cfg, nil
}
