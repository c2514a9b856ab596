package providers

import (
	"encoding/json"
	"strconv"
	"strings"

	"bandauth/core"
)

// Normalize maps a provider's raw profile payload onto the canonical
// identity shape. It is a pure function: deterministic, no I/O. A nil or
// empty payload, or one missing the provider's id field, reports absence.
func Normalize(provider core.Provider, raw map[string]any) (*core.Identity, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var ident core.Identity
	switch provider {
	case core.ProviderGoogle:
		ident = core.Identity{
			ID:       stringField(raw, "id"),
			Email:    stringField(raw, "email"),
			Name:     stringField(raw, "name"),
			Username: core.EmailLocalPart(stringField(raw, "email")),
			Picture:  stringField(raw, "picture"),
		}
	case core.ProviderGitHub:
		name := stringField(raw, "name")
		if name == "" {
			name = stringField(raw, "login")
		}
		ident = core.Identity{
			ID:       stringField(raw, "id"),
			Email:    stringField(raw, "email"),
			Name:     name,
			Username: stringField(raw, "login"),
			Picture:  stringField(raw, "avatar_url"),
		}
	case core.ProviderApple:
		email := stringField(raw, "email")
		name := appleName(raw)
		if name == "" {
			name = core.EmailLocalPart(email)
		}
		ident = core.Identity{
			ID:       stringField(raw, "sub"),
			Email:    email,
			Name:     name,
			Username: core.EmailLocalPart(email),
		}
	default:
		return nil, false
	}

	if ident.ID == "" {
		return nil, false
	}
	ident.Provider = provider
	ident.Raw = raw
	return &ident, true
}

// stringField reads a field as a string, stringifying the numeric ids GitHub
// returns. Depending on how the payload was decoded the number arrives as a
// json.Number or a float64.
func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// appleName joins the firstName/lastName pair Apple posts on first
// authorization (as a nested "name" object).
func appleName(raw map[string]any) string {
	nested, ok := raw["name"].(map[string]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, 2)
	if first := stringField(nested, "firstName"); first != "" {
		parts = append(parts, first)
	}
	if last := stringField(nested, "lastName"); last != "" {
		parts = append(parts, last)
	}
	return strings.Join(parts, " ")
}
