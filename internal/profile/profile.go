package profile

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// HMO is the health-fund the user is a member of.
type HMO string

const (
	HMOClalit   HMO = "clalit"
	HMOMaccabi  HMO = "maccabi"
	HMOMeuhedet HMO = "meuhedet"
)

// Title returns the display name, e.g. "Maccabi".
func (h HMO) Title() string {
	return titleCase(string(h))
}

type Tier string

const (
	TierGold   Tier = "gold"
	TierSilver Tier = "silver"
	TierBronze Tier = "bronze"
)

func (t Tier) Title() string {
	return titleCase(string(t))
}

func titleCase(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DateLayout is the DD/MM/YYYY layout of DateOfBirth.
const DateLayout = "02/01/2006"

// UserProfile is the member information collected before questions are answered.
type UserProfile struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	NationalID    string `json:"national_id"`
	Gender        Gender `json:"gender"`
	DateOfBirth   string `json:"date_of_birth"`
	HMO           HMO    `json:"hmo"`
	InsuranceTier Tier   `json:"insurance_tier"`
}

// Schema is the JSON schema of UserProfile. It is sent to the model as the
// structured output format and used to validate what comes back.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"first_name": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "User's first name",
		},
		"last_name": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "User's last name",
		},
		"national_id": map[string]any{
			"type":        "string",
			"pattern":     `^[0-9]{9}$`,
			"description": "9-digit national ID number",
		},
		"gender": map[string]any{
			"type":        "string",
			"enum":        []any{string(GenderMale), string(GenderFemale)},
			"description": "Gender (male|female / זכר|נקבה)",
		},
		"date_of_birth": map[string]any{
			"type":        "string",
			"pattern":     `^[0-9]{2}/[0-9]{2}/[0-9]{4}$`,
			"description": "Date of birth in DD/MM/YYYY format",
		},
		"hmo": map[string]any{
			"type":        "string",
			"enum":        []any{string(HMOClalit), string(HMOMaccabi), string(HMOMeuhedet)},
			"description": "HMO name (Clalit|Maccabi|Meuhedet / כללית|מכבי|מאוחדת)",
		},
		"insurance_tier": map[string]any{
			"type":        "string",
			"enum":        []any{string(TierGold), string(TierSilver), string(TierBronze)},
			"description": "Insurance membership tier (gold|silver|bronze / זהב|כסף|ארד)",
		},
	},
	"required":             []any{"first_name", "last_name", "national_id", "gender", "date_of_birth", "hmo", "insurance_tier"},
	"additionalProperties": false,
}

var schemaLoader = gojsonschema.NewGoLoader(Schema)

func canonical(s string) string {
	switch s {
	case "זכר", "m":
		return string(GenderMale)
	case "נקבה", "f":
		return string(GenderFemale)
	case "כללית":
		return string(HMOClalit)
	case "מכבי":
		return string(HMOMaccabi)
	case "מאוחדת", "meuchedet":
		return string(HMOMeuhedet)
	case "זהב":
		return string(TierGold)
	case "כסף":
		return string(TierSilver)
	case "ארד":
		return string(TierBronze)
	}
	return s
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid user profile: " + strings.Join(e.Problems, "; ")
}

// Parse decodes a profile document, normalizes it, and validates it.
func Parse(data []byte) (UserProfile, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return UserProfile{}, fmt.Errorf("decoding user profile: %w", err)
	}
	normalize(raw)

	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return UserProfile{}, fmt.Errorf("validating user profile: %w", err)
	}
	if !res.Valid() {
		verr := &ValidationError{}
		for _, e := range res.Errors() {
			verr.Problems = append(verr.Problems, e.String())
		}
		return UserProfile{}, verr
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return UserProfile{}, err
	}
	var p UserProfile
	if err := json.Unmarshal(normalized, &p); err != nil {
		return UserProfile{}, fmt.Errorf("decoding user profile: %w", err)
	}
	if err := p.checkDate(time.Now()); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

// Validate checks p against the schema and the calendar.
func (p UserProfile) Validate() error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = Parse(data)
	return err
}

// BirthDate returns the parsed date of birth.
func (p UserProfile) BirthDate() (time.Time, error) {
	return time.Parse(DateLayout, p.DateOfBirth)
}

// FullName joins first and last name.
func (p UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p UserProfile) checkDate(now time.Time) error {
	dob, err := p.BirthDate()
	if err != nil {
		return &ValidationError{Problems: []string{fmt.Sprintf("date_of_birth: %q is not a valid DD/MM/YYYY date", p.DateOfBirth)}}
	}
	if dob.After(now) {
		return &ValidationError{Problems: []string{"date_of_birth: must not be in the future"}}
	}
	return nil
}

// normalize trims values, lower-cases enum fields, maps Hebrew synonyms and
// removes separators from the national id.
func normalize(raw map[string]any) {
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		switch k {
		case "gender", "hmo", "insurance_tier":
			s = canonical(strings.ToLower(s))
		case "national_id":
			s = strings.NewReplacer("-", "", " ", "").Replace(s)
		case "date_of_birth":
			s = strings.NewReplacer(".", "/", "-", "/").Replace(s)
		}
		raw[k] = s
	}
}

// IsComplete reports whether every field holds a value.
func (p UserProfile) IsComplete() bool {
	return p.FirstName != "" && p.LastName != "" && p.NationalID != "" && p.Gender != "" &&
		p.DateOfBirth != "" && p.HMO != "" && p.InsuranceTier != ""
}
