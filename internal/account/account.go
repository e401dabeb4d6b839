// Package account defines the principal and credential vocabulary shared
// by the service client and the lifecycle rules.
//
// A Credential is a closed sum over the three authentication modes the
// service's DDL can express. The zero value is not valid; construct
// credentials through Unauthenticated, NoCredential, or PlainSecret.
package account

import (
	"fmt"
)

// Kind tags a credential variant.
type Kind string

const (
	// KindUnauthenticated renders as NOT IDENTIFIED. A principal created
	// this way can never present a matching credential at login.
	KindUnauthenticated Kind = "unauthenticated"

	// KindNoCredential renders as IDENTIFIED WITH no_password. Login
	// succeeds with an empty secret and only with an empty secret.
	KindNoCredential Kind = "no_password"

	// KindPlainSecret renders as IDENTIFIED WITH plaintext_password.
	// Login succeeds iff the presented secret matches exactly.
	KindPlainSecret Kind = "plain_secret"
)

// Credential is one authentication mode. Secret is meaningful only when
// Kind is KindPlainSecret.
type Credential struct {
	Kind   Kind
	Secret string
}

// Unauthenticated returns the NOT IDENTIFIED credential.
func Unauthenticated() Credential {
	return Credential{Kind: KindUnauthenticated}
}

// NoCredential returns the IDENTIFIED WITH no_password credential.
func NoCredential() Credential {
	return Credential{Kind: KindNoCredential}
}

// PlainSecret returns a plaintext-password credential.
func PlainSecret(secret string) Credential {
	return Credential{Kind: KindPlainSecret, Secret: secret}
}

// Clause renders the credential as its DDL authentication clause.
func (c Credential) Clause() string {
	switch c.Kind {
	case KindUnauthenticated:
		return "NOT IDENTIFIED"
	case KindNoCredential:
		return "IDENTIFIED WITH no_password"
	case KindPlainSecret:
		return fmt.Sprintf("IDENTIFIED WITH plaintext_password BY '%s'", EscapeString(c.Secret))
	default:
		panic(fmt.Sprintf("account: unknown credential kind %q", c.Kind))
	}
}

// String describes the credential without exposing the secret.
func (c Credential) String() string {
	if c.Kind == KindPlainSecret {
		return fmt.Sprintf("plain_secret(len=%d)", len(c.Secret))
	}
	return string(c.Kind)
}

// Encode serializes the credential for a step's recorded parameters.
// The secret is carried verbatim: replay must present the exact bytes.
func (c Credential) Encode() map[string]any {
	m := map[string]any{"kind": string(c.Kind)}
	if c.Kind == KindPlainSecret {
		m["secret"] = c.Secret
	}
	return m
}

// DecodeCredential is the inverse of Encode. It accepts the map shape
// produced by Encode, before or after a JSON round trip.
func DecodeCredential(v any) (Credential, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Credential{}, fmt.Errorf("account: credential params are %T, want map", v)
	}
	kind, ok := m["kind"].(string)
	if !ok {
		return Credential{}, fmt.Errorf("account: credential params missing kind")
	}
	switch Kind(kind) {
	case KindUnauthenticated:
		return Unauthenticated(), nil
	case KindNoCredential:
		return NoCredential(), nil
	case KindPlainSecret:
		secret, ok := m["secret"].(string)
		if !ok {
			return Credential{}, fmt.Errorf("account: plain_secret params missing secret")
		}
		return PlainSecret(secret), nil
	default:
		return Credential{}, fmt.Errorf("account: unknown credential kind %q", kind)
	}
}

// Principal is one managed account. Identity on the service is the
// name; ExternalID is a stable engine-side handle that survives renames
// and lets a step reference the same principal across a replay.
type Principal struct {
	Name       string
	Credential Credential
	ExternalID string
}

// DefaultName is the service's built-in superuser. It is never modeled,
// never listed, and never dropped.
const DefaultName = "default"
