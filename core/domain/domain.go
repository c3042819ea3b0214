package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Domain int

const (
	DomainFinance Domain = iota
	DomainCareer
	DomainDailyTask
)

var domainNames = map[Domain]string{
	DomainFinance:   "finance",
	DomainCareer:    "career",
	DomainDailyTask: "daily_task",
}

var nameToDomain = map[string]Domain{
	"finance":    DomainFinance,
	"career":     DomainCareer,
	"daily_task": DomainDailyTask,
}

var domainLabels = map[Domain]string{
	DomainFinance:   "Finance",
	DomainCareer:    "Career",
	DomainDailyTask: "Daily Tasks",
}

// FallbackDomain handles the broadest range of generic or ambiguous requests.
const FallbackDomain = DomainDailyTask

func (d Domain) String() string {
	if name, ok := domainNames[d]; ok {
		return name
	}
	return fmt.Sprintf("domain(%d)", d)
}

// Label is the human readable heading used when summaries are combined.
func (d Domain) Label() string {
	if label, ok := domainLabels[d]; ok {
		return label
	}
	return d.String()
}

func (d Domain) IsValid() bool {
	_, ok := domainNames[d]
	return ok
}

// ParseDomain accepts the wire name plus the common spellings the model
// produces ("daily-task", "Daily Task").
func ParseDomain(s string) (Domain, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	d, ok := nameToDomain[normalized]
	return d, ok
}

func ValidDomains() []Domain {
	return []Domain{
		DomainFinance,
		DomainCareer,
		DomainDailyTask,
	}
}

// ParseDomains converts names to domains, dropping unknown names and
// duplicates while keeping first-seen order.
func ParseDomains(names []string) []Domain {
	result := make([]Domain, 0, len(names))
	seen := make(map[Domain]bool, len(names))
	for _, name := range names {
		d, ok := ParseDomain(name)
		if !ok || seen[d] {
			continue
		}
		seen[d] = true
		result = append(result, d)
	}
	return result
}

// UniqueDomains drops repeated domains, keeping first-seen order.
func UniqueDomains(domains []Domain) []Domain {
	result := make([]Domain, 0, len(domains))
	for _, d := range domains {
		if !ContainsDomain(result, d) {
			result = append(result, d)
		}
	}
	return result
}

func ContainsDomain(domains []Domain, d Domain) bool {
	for _, existing := range domains {
		if existing == d {
			return true
		}
	}
	return false
}

func (d Domain) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Domain) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, ok := ParseDomain(s)
	if !ok {
		return fmt.Errorf("invalid domain: %s", s)
	}

	*d = parsed
	return nil
}

func (d Domain) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Domain) UnmarshalText(text []byte) error {
	parsed, ok := ParseDomain(string(text))
	if !ok {
		return fmt.Errorf("invalid domain: %s", text)
	}
	*d = parsed
	return nil
}
