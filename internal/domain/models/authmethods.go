// internal/domain/models/authmethods.go
package models

import "strings"

// AuthMethod represents a sign-in method option.
type AuthMethod struct {
	Value string // The value stored in the database
	Label string // The display label
}

// AllAuthMethods contains all supported auth methods with their display labels.
var AllAuthMethods = []AuthMethod{
	{Value: "password", Label: "Password"},
	{Value: "google", Label: "Google"},
}

// IsValidAuthMethod checks if a value is a valid auth method.
func IsValidAuthMethod(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, m := range AllAuthMethods {
		if m.Value == v {
			return true
		}
	}
	return false
}
