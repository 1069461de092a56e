// Package internal holds small helpers shared by the API and the
// notification builders.
package internal

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/nyaruka/phonenumbers"
)

const (
	EmailRegexTemplate  = `^[\w.\+\.\-]+@([\w\-]+\.)+[\w]{2,}$`
	DefaultPhoneCountry = "FR"
)

var (
	emailRegex       = regexp.MustCompile(EmailRegexTemplate)
	reservationRegex = regexp.MustCompile(`^(.+)-\d{4}-\d{2}-\d{2}-(morning|afternoon)$`)

	textPolicy = bluemonday.StrictPolicy()
)

// reservationLabels maps the reservation product slugs to their display
// names.
var reservationLabels = map[string]string{
	"formation-room":  "Salle de formation",
	"location-bureau": "Location bureau",
	"coworking-space": "Espace coworking",
}

var reservationPeriods = map[string]string{
	"morning":   "matin",
	"afternoon": "après-midi",
}

// ValidEmail helper function allows to validate an email address.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// SanitizePhoneNumber helper function parses a phone number, using France as
// the default region, and returns it in E.164 format.
func SanitizePhoneNumber(phone string) (string, error) {
	pn, err := phonenumbers.Parse(phone, DefaultPhoneCountry)
	if err != nil {
		return "", fmt.Errorf("invalid phone number %s: %w", phone, err)
	}
	if !phonenumbers.IsValidNumber(pn) {
		return "", fmt.Errorf("invalid phone number %s", phone)
	}
	return phonenumbers.Format(pn, phonenumbers.E164), nil
}

// SanitizeText strips every HTML tag from s and trims the result. It is
// applied to the user provided values that end in an email or a document.
// Entities escaped by the policy are decoded back, the templates escape the
// output again.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// HumanizeReservationType turns a reservation type such as
// "formation-room-2025-03-14-morning" into "Salle de formation matin". Values
// not following that layout only get their dashes replaced by spaces.
func HumanizeReservationType(raw string) string {
	m := reservationRegex.FindStringSubmatch(raw)
	if m == nil {
		return strings.ReplaceAll(raw, "-", " ")
	}
	base, ok := reservationLabels[m[1]]
	if !ok {
		base = strings.ReplaceAll(m[1], "-", " ")
	}
	return base + " " + reservationPeriods[m[2]]
}

// FormatEuros formats an amount in euros the French way, e.g. "1 234,50 €".
func FormatEuros(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, decPart, _ := strings.Cut(s, ".")
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteRune(' ')
		}
		grouped.WriteRune(r)
	}
	return sign + grouped.String() + "," + decPart + " €"
}
