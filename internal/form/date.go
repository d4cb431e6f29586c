package form

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Labels containing any of these tokens make a time-of-day component
// mandatory for the field's answer.
var timeDemandTokens = []string{"time", "when", "schedule", "appointment", "booking"}

var (
	clockPattern    = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	meridiemPattern = regexp.MustCompile(`(?i)\b\d{1,2}\s*(a\.?m\.?|p\.?m\.?)\b`)
	atHourPattern   = regexp.MustCompile(`(?i)\bat\s+\d`)

	namedPeriods = []string{"noon", "midnight", "morning", "afternoon", "evening", "night"}
)

var nlParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

func validateDate(field FieldDefinition, answer RawAnswer) Outcome {
	if answer.Multi {
		return fail(ErrTypeMismatch, "Expected a single value, not a list")
	}
	raw := strings.TrimSpace(answer.Text)

	parsed, parsedOK := parseNatural(raw)
	if !parsedOK {
		if t, err := dateparse.ParseAny(raw); err == nil {
			parsed, parsedOK = t, true
		}
	}
	if !parsedOK {
		return fail(ErrFormat, `Sorry, I couldn't understand that date. Please try an explicit format like "January 15, 2026" or "tomorrow at 3pm"`)
	}

	if labelDemandsTime(field.Label) && !mentionsTime(raw) {
		return fail(ErrFormat, `Could you also give me a specific time? For example "3pm" or "15:00"`)
	}

	return pass(parsed.UTC().Format(time.RFC3339))
}

func parseNatural(raw string) (time.Time, bool) {
	r, err := nlParser.Parse(raw, time.Now())
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

func labelDemandsTime(label string) bool {
	l := strings.ToLower(label)
	for _, tok := range timeDemandTokens {
		if strings.Contains(l, tok) {
			return true
		}
	}
	return false
}

// mentionsTime reports whether the raw text carries a time-of-day
// component: an HH:MM clock, "<n> am/pm", "at <digit>", or a named
// period like noon or morning.
func mentionsTime(raw string) bool {
	if clockPattern.MatchString(raw) || meridiemPattern.MatchString(raw) || atHourPattern.MatchString(raw) {
		return true
	}
	l := strings.ToLower(raw)
	for _, p := range namedPeriods {
		if strings.Contains(l, p) {
			return true
		}
	}
	return false
}
