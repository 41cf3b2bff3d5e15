package control

import "strings"

// knownDomains are the only error-id domains spec.md §6/§7 define;
// anything else maps to UNKNOWN.
var knownDomains = map[string]bool{
	"flow": true,
	"io":   true,
	"data": true,
}

// ParseErrorID splits a wire error_id into its domain and code,
// following spec.md §6's strict grammar: exactly one '.', no
// leading/trailing whitespace, domain must be one of {flow, io, data}.
// Anything that doesn't parse, or parses to an unknown domain, reports
// ok=false and the caller treats it as permanent (spec.md §9's open
// question: reimplementors should treat the source's ambiguous
// compare() semantics as a bug and parse strictly instead).
func ParseErrorID(raw string) (ParsedErrorID, bool) {
	if raw == "" {
		return ParsedErrorID{}, false
	}
	if strings.TrimSpace(raw) != raw {
		return ParsedErrorID{}, false
	}
	domain, code, found := strings.Cut(raw, ".")
	if !found || domain == "" || code == "" {
		return ParsedErrorID{}, false
	}
	if strings.Contains(code, ".") {
		return ParsedErrorID{}, false
	}
	if !knownDomains[domain] {
		return ParsedErrorID{}, false
	}
	return ParsedErrorID{Domain: domain, Code: code}, true
}
