package rule

import "strings"

// Template is a named, reusable rule set.
type Template struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []Rule `json:"rules" yaml:"rules"`
}

// Common patterns shared by the built-in templates and presets.
const (
	EmailPattern   = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	PhonePattern   = `(\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`
	AddressPattern = `(\d+\s+[A-Za-z0-9\s,.-]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Place|Pl|Court|Ct|Circle|Cir|Parkway|Pkwy|Highway|Hwy|Route|Rt|North|N|South|S|East|E|West|W|Northeast|NE|Northwest|NW|Southeast|SE|Southwest|SW))`
	SocialPattern  = `(?:https?:\/\/)?(?:www\.)?(?:facebook\.com|twitter\.com|linkedin\.com|instagram\.com)\/[a-zA-Z0-9._-]+`
)

// Templates returns the built-in templates. The returned slice is a fresh
// copy and may be modified by the caller.
func Templates() []Template {
	return []Template{
		{
			Name:        "Contact Information",
			Description: "Extract emails, phones, and addresses from contact pages",
			Rules: []Rule{
				{Name: "Email Addresses", Variant: PatternMatch, Pattern: EmailPattern},
				{Name: "Phone Numbers", Variant: PatternMatch, Pattern: PhonePattern},
				{Name: "Addresses", Variant: PatternMatch, Pattern: AddressPattern},
			},
		},
		{
			Name:        "Social Media",
			Description: "Find social media profiles and links",
			Rules: []Rule{
				{Name: "Facebook", Variant: PatternMatch, Pattern: `(?:https?:\/\/)?(?:www\.)?facebook\.com\/[a-zA-Z0-9._-]+`},
				{Name: "Twitter", Variant: PatternMatch, Pattern: `(?:https?:\/\/)?(?:www\.)?twitter\.com\/[a-zA-Z0-9._-]+`},
				{Name: "LinkedIn", Variant: PatternMatch, Pattern: `(?:https?:\/\/)?(?:www\.)?linkedin\.com\/in\/[a-zA-Z0-9._-]+`},
				{Name: "Instagram", Variant: PatternMatch, Pattern: `(?:https?:\/\/)?(?:www\.)?instagram\.com\/[a-zA-Z0-9._-]+`},
			},
		},
		{
			Name:        "Business Directory",
			Description: "Extract business names, hours, and contact details",
			Rules: []Rule{
				{Name: "Business Names", Variant: StructuralSelector, Selector: "h1, .business-name, .company-name"},
				{Name: "Phone Numbers", Variant: PatternMatch, Pattern: PhonePattern},
				{Name: "Email Addresses", Variant: PatternMatch, Pattern: EmailPattern},
				{Name: "Addresses", Variant: StructuralSelector, Selector: `.address, .location, [itemprop="address"]`},
			},
		},
	}
}

// Presets returns single ready-made rules for the most common extractions.
func Presets() []Rule {
	return []Rule{
		{Name: "Email Addresses", Variant: PatternMatch, Pattern: EmailPattern, Description: "Extract email addresses from text"},
		{Name: "Phone Numbers", Variant: PatternMatch, Pattern: PhonePattern, Description: "Extract phone numbers"},
		{Name: "Social Media Links", Variant: PatternMatch, Pattern: SocialPattern, Description: "Extract social media profile links"},
		{Name: "Addresses", Variant: PatternMatch, Pattern: AddressPattern, Description: "Extract street addresses"},
	}
}

// LookupTemplate finds a built-in template by name, ignoring case and
// accepting dashes or underscores in place of spaces.
func LookupTemplate(name string) (Template, bool) {
	want := templateKey(name)
	for _, t := range Templates() {
		if templateKey(t.Name) == want {
			return t, true
		}
	}
	return Template{}, false
}

func templateKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", " ", "_", " ").Replace(s)
}
