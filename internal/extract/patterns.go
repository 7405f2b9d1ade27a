package extract

import (
	"net"
	"regexp"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// Tried in order; later patterns skip spans already claimed by earlier ones
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+44\s?\d{2,4}\s?\d{3,4}\s?\d{3,4}`),
		regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`),
		regexp.MustCompile(`\+\d{1,3}[\s.\-]?\d{2,4}(?:[\s.\-]?\d{2,4}){2,3}`),
		regexp.MustCompile(`\d{3}[\s.\-]\d{4}`),
	}

	addressPattern = regexp.MustCompile(`(?i)\d{1,6}(?:\s+[a-z0-9.'\-]+){1,4}?\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|place|pl|way|terrace|ter|circle|cir|parkway|pkwy|highway|hwy|square|sq)\b\.?`)

	ssnPattern  = regexp.MustCompile(`\d{3}-\d{2}-\d{4}`)
	cardPattern = regexp.MustCompile(`(?:\d{4}[\s\-]?){3}\d{4}`)
	ipv4Pattern = regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}`)
)

// otherKinds recognize identifiers outside the subject's fields
var otherKinds = []struct {
	kind    string
	pattern *regexp.Regexp
	valid   func(string) bool
}{
	{"ssn", ssnPattern, validSSN},
	{"card", cardPattern, luhn},
	{"ip", ipv4Pattern, func(s string) bool { return net.ParseIP(s) != nil }},
}

// validSSN rejects never-issued area, group and serial numbers
func validSSN(s string) bool {
	area, group, serial := s[0:3], s[4:6], s[7:11]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

// luhn validates a card number checksum
func luhn(s string) bool {
	digits := NormalizePhone(s)
	if len(digits) < 13 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
