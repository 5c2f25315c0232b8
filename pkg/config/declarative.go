package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SkillProfileDecl is the YAML-declared shape of a SkillProfile
// registration. Extraction routines are code, not data, so declarations
// only carry the scoring inputs; callers attach an ExtractFunc by name
// after loading.
type SkillProfileDecl struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
	Priority int      `yaml:"priority"`
}

// ScheduleDecl is the YAML-declared shape of a Schedule registration.
// Interval holds either a Go duration string ("15m") or a 5-field cron
// expression; neither this package nor pkg/scheduler interprets it, so the
// caller picks ScheduleInterval or ScheduleCron. Task is a logical name
// the caller resolves to a scheduler.Task.
type ScheduleDecl struct {
	Name     string `yaml:"name"`
	Interval string `yaml:"interval"`
	Task     string `yaml:"task"`
	Enabled  bool   `yaml:"enabled"`
}

// declarationsFile is the top-level shape of a profiles/schedules YAML
// document; either section may be omitted.
type declarationsFile struct {
	SkillProfiles []SkillProfileDecl `yaml:"skill_profiles"`
	Schedules     []ScheduleDecl     `yaml:"schedules"`
}

// LoadDeclarations reads skill-profile and schedule declarations from a
// YAML file. A missing path is not an error — it returns an empty result
// so deployments that wire everything in code still work.
func LoadDeclarations(path string) ([]SkillProfileDecl, []ScheduleDecl, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("config: read declarations %s: %w", path, err)
	}

	var doc declarationsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("config: parse declarations %s: %w", path, err)
	}
	return doc.SkillProfiles, doc.Schedules, nil
}
