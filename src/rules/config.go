package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds rule thresholds and penalties. Zero values are replaced by the
// defaults when loading.
type Config struct {
	MinDescriptionChars int      `yaml:"min_description_chars"`
	UppercaseRatio      float64  `yaml:"uppercase_ratio"`
	UppercaseMinLetters int      `yaml:"uppercase_min_letters"`
	PriceFloor          float64  `yaml:"price_floor"`
	MinPricePerSqft     float64  `yaml:"min_price_per_sqft"`
	MaxPricePerSqft     float64  `yaml:"max_price_per_sqft"`
	MaxAreaSqft         float64  `yaml:"max_area_sqft"`
	MaxRooms            int      `yaml:"max_rooms"`
	UrgencyPhrases      []string `yaml:"urgency_phrases"`

	Penalties map[RuleID]float64 `yaml:"penalties"`
}

// DefaultConfig returns the built-in rule thresholds.
func DefaultConfig() Config {
	return Config{
		MinDescriptionChars: 40,
		UppercaseRatio:      0.5,
		UppercaseMinLetters: 20,
		PriceFloor:          1000,
		MinPricePerSqft:     5,
		MaxPricePerSqft:     50000,
		MaxAreaSqft:         1_000_000,
		MaxRooms:            50,
		UrgencyPhrases: []string{
			"urgent sale",
			"advance payment",
			"wire transfer",
			"token money",
			"pay before visit",
			"western union",
		},
		Penalties: defaultPenalties(),
	}
}

func defaultPenalties() map[RuleID]float64 {
	return map[RuleID]float64{
		RuleContactPhone:     0.30,
		RuleContactEmail:     0.25,
		RuleContactURL:       0.20,
		RuleTooShort:         0.15,
		RuleUppercase:        0.10,
		RuleSpamPunctuation:  0.05,
		RuleUrgency:          0.15,
		RulePriceBelowFloor:  0.40,
		RulePricePerSqft:     0.25,
		RuleAreaImplausible:  0.20,
		RuleRoomsImplausible: 0.10,
		RuleMediaMissing:     0.10,

		RuleFormatPhone:        0.25,
		RuleFormatEmail:        0.25,
		RuleFormatLicense:      0.35,
		RuleFormatRegistration: 0.30,
		RuleFormatName:         0.20,
	}
}

// LoadConfig reads a YAML rule file over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	return cfg.merge(fileCfg), nil
}

func (c Config) merge(o Config) Config {
	if o.MinDescriptionChars > 0 {
		c.MinDescriptionChars = o.MinDescriptionChars
	}
	if o.UppercaseRatio > 0 {
		c.UppercaseRatio = o.UppercaseRatio
	}
	if o.UppercaseMinLetters > 0 {
		c.UppercaseMinLetters = o.UppercaseMinLetters
	}
	if o.PriceFloor > 0 {
		c.PriceFloor = o.PriceFloor
	}
	if o.MinPricePerSqft > 0 {
		c.MinPricePerSqft = o.MinPricePerSqft
	}
	if o.MaxPricePerSqft > 0 {
		c.MaxPricePerSqft = o.MaxPricePerSqft
	}
	if o.MaxAreaSqft > 0 {
		c.MaxAreaSqft = o.MaxAreaSqft
	}
	if o.MaxRooms > 0 {
		c.MaxRooms = o.MaxRooms
	}
	if len(o.UrgencyPhrases) > 0 {
		c.UrgencyPhrases = append([]string(nil), o.UrgencyPhrases...)
	}
	penalties := make(map[RuleID]float64, len(c.Penalties))
	for id, p := range c.Penalties {
		penalties[id] = p
	}
	for id, p := range o.Penalties {
		if p >= 0 {
			penalties[id] = p
		}
	}
	c.Penalties = penalties
	return c
}
