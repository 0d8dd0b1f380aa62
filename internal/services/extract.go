// Package services – registration command extraction.
//
// The model signals "register this person now" by appending a marker of the
// shape REGISTER_CLIENT{...} to its reply, where {...} is a JSON object (the
// system prompt mandates the exact format). This file locates the marker with
// a balanced-brace scan, parses the payload with encoding/json, and strips
// the command from the visible reply. JSON parsing means values may contain
// commas, colons, or escaped quotes without corrupting extraction.
package services

import (
	"encoding/json"
	"regexp"
	"strings"
)

// registerMarker prefixes the embedded registration command.
const registerMarker = "REGISTER_CLIENT"

// registrationPayload mirrors the JSON object the model emits after the
// marker. Email is the only optional field.
type registrationPayload struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Age        string `json:"age"`
	Level      string `json:"level"`
	Goals      string `json:"goals"`
	Experience string `json:"experience"`
	Program    string `json:"program"`
}

// requiredFields reports which of the seven required fields are empty after
// trimming. An empty result means the payload is complete.
func (p *registrationPayload) missingFields() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("name", p.Name)
	check("phone", p.Phone)
	check("age", p.Age)
	check("level", p.Level)
	check("goals", p.Goals)
	check("experience", p.Experience)
	check("program", p.Program)
	return missing
}

// extractCommand scans reply for the registration marker. When found it
// returns the raw payload between the outer braces, the reply with the whole
// command removed, and found=true. The brace scan is quote-aware so braces
// inside JSON string values do not terminate the block early.
//
// Only the first marker is honored; any text the model wrote after the
// command block is preserved.
func extractCommand(reply string) (payload string, cleaned string, found bool) {
	start := strings.Index(reply, registerMarker)
	if start < 0 {
		return "", reply, false
	}
	open := start + len(registerMarker)
	// Tolerate whitespace between the marker and the opening brace.
	for open < len(reply) && (reply[open] == ' ' || reply[open] == '\t') {
		open++
	}
	if open >= len(reply) || reply[open] != '{' {
		// Marker without a block: drop the bare token from the visible text.
		return "", tidyReply(reply[:start] + reply[start+len(registerMarker):]), false
	}

	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(reply); i++ {
		ch := reply[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '{':
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 {
				payload = reply[open : i+1]
				cleaned = tidyReply(reply[:start] + reply[i+1:])
				return payload, cleaned, true
			}
		}
	}

	// Unterminated block: treat everything from the marker on as command
	// debris and keep only the text before it.
	return "", tidyReply(reply[:start]), false
}

// parseCommand decodes the payload JSON. A syntactically broken payload
// returns an error; field completeness is checked separately.
func parseCommand(payload string) (*registrationPayload, error) {
	var p registrationPayload
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// trailingWS collapses runs of spaces left behind by marker removal.
var trailingWS = regexp.MustCompile(`[ \t]{2,}`)

// tidyReply cleans the visible text after the command block was cut out.
func tidyReply(s string) string {
	s = trailingWS.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
