package account

import (
	"fmt"
	"strings"
)

// EscapeString escapes a value for inclusion in a single-quoted SQL
// string literal, doubling embedded single quotes.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// CreateStatement renders the CREATE USER statement for a principal.
func CreateStatement(name string, c Credential) string {
	return fmt.Sprintf("CREATE USER %s %s", name, c.Clause())
}

// AlterStatement renders an ALTER USER statement. rename is the new
// name, or "" to keep the current one; cred is the new credential, or
// nil to keep the current one. At least one of the two must be given.
func AlterStatement(name, rename string, cred *Credential) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER USER %s", name)
	if rename != "" {
		fmt.Fprintf(&b, " RENAME TO %s", rename)
	}
	if cred != nil {
		b.WriteByte(' ')
		b.WriteString(cred.Clause())
	}
	return b.String()
}

// DropStatement renders the DROP USER statement.
func DropStatement(name string) string {
	return fmt.Sprintf("DROP USER %s", name)
}
