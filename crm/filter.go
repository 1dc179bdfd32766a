package crm

import (
	"net/url"
	"strings"
	"time"
)

// DateLayout is the wire format of every date filter.
const DateLayout = "2006-01-02"

// Query keys. Multi-select fields repeat their key once per value.
const (
	KeySearch           = "q"
	KeyAssignedTo       = "assignedTo"
	KeyStatus           = "status"
	KeyTemperature      = "temperature"
	KeyPriority         = "priority"
	KeyFinancing        = "financing"
	KeyLocation         = "location"
	KeyTrailerType      = "trailerType"
	KeyTrailerSize      = "trailerSize"
	KeyTrailerCondition = "trailerCondition"
	KeyCreatedFrom      = "createdFrom"
	KeyCreatedTo        = "createdTo"
	KeyFollowUpFrom     = "followUpFrom"
	KeyFollowUpTo       = "followUpTo"
	KeyUnassigned       = "unassigned"
	KeyNeedsFollowUp    = "needsFollowUp"
	KeyHasCreditApp     = "hasCreditApp"
)

// FilterState is every search criterion the customer list supports.
type FilterState struct {
	Search           string    `json:"search,omitempty"`
	AssignedTo       string    `json:"assignedTo,omitempty"`
	Statuses         []string  `json:"statuses,omitempty"`
	Temperatures     []string  `json:"temperatures,omitempty"`
	Priorities       []string  `json:"priorities,omitempty"`
	Financing        string    `json:"financing,omitempty"`
	Location         string    `json:"location,omitempty"`
	TrailerType      string    `json:"trailerType,omitempty"`
	TrailerSize      string    `json:"trailerSize,omitempty"`
	TrailerCondition string    `json:"trailerCondition,omitempty"`
	CreatedFrom      time.Time `json:"createdFrom,omitempty"`
	CreatedTo        time.Time `json:"createdTo,omitempty"`
	FollowUpFrom     time.Time `json:"followUpFrom,omitempty"`
	FollowUpTo       time.Time `json:"followUpTo,omitempty"`
	Unassigned       bool      `json:"unassigned,omitempty"`
	NeedsFollowUp    bool      `json:"needsFollowUp,omitempty"`
	HasCreditApp     bool      `json:"hasCreditApp,omitempty"`
}

// Encode maps f to query parameters. Zero-valued fields produce no key.
func Encode(f FilterState) url.Values {
	v := url.Values{}
	setString(v, KeySearch, f.Search)
	setString(v, KeyAssignedTo, f.AssignedTo)
	setList(v, KeyStatus, f.Statuses)
	setList(v, KeyTemperature, f.Temperatures)
	setList(v, KeyPriority, f.Priorities)
	setString(v, KeyFinancing, f.Financing)
	setString(v, KeyLocation, f.Location)
	setString(v, KeyTrailerType, f.TrailerType)
	setString(v, KeyTrailerSize, f.TrailerSize)
	setString(v, KeyTrailerCondition, f.TrailerCondition)
	setDate(v, KeyCreatedFrom, f.CreatedFrom)
	setDate(v, KeyCreatedTo, f.CreatedTo)
	setDate(v, KeyFollowUpFrom, f.FollowUpFrom)
	setDate(v, KeyFollowUpTo, f.FollowUpTo)
	setFlag(v, KeyUnassigned, f.Unassigned)
	setFlag(v, KeyNeedsFollowUp, f.NeedsFollowUp)
	setFlag(v, KeyHasCreditApp, f.HasCreditApp)
	return v
}

// Parse reads a FilterState back from query parameters. Unknown keys, blank
// values, duplicate list entries and malformed dates are ignored.
func Parse(v url.Values) FilterState {
	return FilterState{
		Search:           getString(v, KeySearch),
		AssignedTo:       getString(v, KeyAssignedTo),
		Statuses:         getList(v, KeyStatus),
		Temperatures:     getList(v, KeyTemperature),
		Priorities:       getList(v, KeyPriority),
		Financing:        getString(v, KeyFinancing),
		Location:         getString(v, KeyLocation),
		TrailerType:      getString(v, KeyTrailerType),
		TrailerSize:      getString(v, KeyTrailerSize),
		TrailerCondition: getString(v, KeyTrailerCondition),
		CreatedFrom:      getDate(v, KeyCreatedFrom),
		CreatedTo:        getDate(v, KeyCreatedTo),
		FollowUpFrom:     getDate(v, KeyFollowUpFrom),
		FollowUpTo:       getDate(v, KeyFollowUpTo),
		Unassigned:       getFlag(v, KeyUnassigned),
		NeedsFollowUp:    getFlag(v, KeyNeedsFollowUp),
		HasCreditApp:     getFlag(v, KeyHasCreditApp),
	}
}

// ParseQuery is Parse over a raw query string.
func ParseQuery(raw string) (FilterState, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return FilterState{}, err
	}
	return Parse(v), nil
}

// Normalize drops anything Parse would drop, e.g. blank or repeated values.
func Normalize(f FilterState) FilterState {
	return Parse(Encode(f))
}

// ActiveCount counts the filters that differ from their defaults. A date
// range counts once whichever of its ends is set.
func ActiveCount(f FilterState) int {
	n := 0
	for _, s := range []string{f.Search, f.AssignedTo, f.Financing, f.Location, f.TrailerType, f.TrailerSize, f.TrailerCondition} {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	for _, l := range [][]string{f.Statuses, f.Temperatures, f.Priorities} {
		if len(l) > 0 {
			n++
		}
	}
	if !f.CreatedFrom.IsZero() || !f.CreatedTo.IsZero() {
		n++
	}
	if !f.FollowUpFrom.IsZero() || !f.FollowUpTo.IsZero() {
		n++
	}
	for _, b := range []bool{f.Unassigned, f.NeedsFollowUp, f.HasCreditApp} {
		if b {
			n++
		}
	}
	return n
}

func setString(v url.Values, key, val string) {
	if val = strings.TrimSpace(val); val != "" {
		v.Set(key, val)
	}
}

func setList(v url.Values, key string, vals []string) {
	for _, val := range dedupe(vals) {
		v.Add(key, val)
	}
}

func setDate(v url.Values, key string, t time.Time) {
	if !t.IsZero() {
		v.Set(key, t.Format(DateLayout))
	}
}

func setFlag(v url.Values, key string, on bool) {
	if on {
		v.Set(key, "1")
	}
}

func getString(v url.Values, key string) string {
	return strings.TrimSpace(v.Get(key))
}

func getList(v url.Values, key string) []string {
	return dedupe(v[key])
}

func getDate(v url.Values, key string) time.Time {
	s := getString(v, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func getFlag(v url.Values, key string) bool {
	switch strings.ToLower(getString(v, key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func dedupe(vals []string) []string {
	var out []string
	seen := make(map[string]bool, len(vals))
	for _, val := range vals {
		val = strings.TrimSpace(val)
		if val == "" || seen[val] {
			continue
		}
		seen[val] = true
		out = append(out, val)
	}
	return out
}
