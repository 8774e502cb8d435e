// Package i18n holds the few receipt strings that vary by language.
package i18n

const DefaultLanguage = "de"

var translations = map[string]map[string]string{
	"de": {
		"priority_1":         "Niedrig",
		"priority_2":         "Mittel",
		"priority_3":         "Normal",
		"priority_4":         "Hoch",
		"priority_5":         "Dringend",
		"default_motivation": "Pack es an!",
	},
	"en": {
		"priority_1":         "Low",
		"priority_2":         "Medium",
		"priority_3":         "Normal",
		"priority_4":         "High",
		"priority_5":         "Urgent",
		"default_motivation": "Get it done!",
	},
}

// Get looks up key in the given language, falling back to the default
// language and then to fallback.
func Get(language, key, fallback string) string {
	if m, ok := translations[language]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations[DefaultLanguage]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return fallback
}

// Supported reports whether language has a translation table.
func Supported(language string) bool {
	_, ok := translations[language]
	return ok
}
