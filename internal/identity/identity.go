// Package identity signs users in and maps session tokens to the owner id
// that partitions their records.
package identity

import (
	"fmt"
	"strings"
)

// Method is a sign-in method.
type Method string

const (
	MethodLocal     Method = "local"
	MethodAnonymous Method = "anonymous"
	MethodEmail     Method = "email"
	MethodToken     Method = "token"
	MethodGoogle    Method = "google"
)

// ParseMethod maps user input to a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodAnonymous, MethodEmail, MethodToken, MethodGoogle:
		return m, nil
	}
	return "", fmt.Errorf("identity: unknown sign-in method %q", s)
}

// Identity is a signed-in user. ID is the opaque owner partition key.
type Identity struct {
	ID     string `json:"id"`
	Method Method `json:"method"`
	Email  string `json:"email,omitempty"`
}

// Local is the single identity used when sign-in is disabled.
var Local = Identity{ID: "local", Method: MethodLocal}

// Credentials carries whatever a method needs. Unused fields are ignored.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}
