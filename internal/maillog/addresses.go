package maillog

import "regexp"

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// ExtractAddresses pulls email addresses out of free text, e.g. a recipient
// field holding several garbled addresses or an error message like
// "The following recipients failed: test@example.com". Order of first
// appearance, duplicates removed.
func ExtractAddresses(text string) []string {
	matches := emailPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	unique := make([]string, 0, len(matches))
	for _, addr := range matches {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		unique = append(unique, addr)
	}

	return unique
}

// ExtractDomain returns the domain part of an address, or "" when the
// input is not an address.
func ExtractDomain(email string) string {
	match := emailPattern.FindString(email)
	if match == "" {
		return ""
	}
	for i := len(match) - 1; i >= 0; i-- {
		if match[i] == '@' {
			return match[i+1:]
		}
	}
	return ""
}
