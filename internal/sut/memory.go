package sut

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prowlkit/prowl/internal/account"
)

// Memory is an in-process stand-in for the service's account
// subsystem. It speaks the same statement surface and emits the same
// diagnostic texts as the real service, so outcome classification and
// the lifecycle rules cannot tell the two apart. Sessions authenticate
// against the current account table on every statement, exactly like
// the real service does.
type Memory struct {
	mu    sync.Mutex
	users map[string]account.Credential
}

// NewMemory builds an empty in-memory service. The default superuser
// is built in and never appears in the account table.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]account.Credential)}
}

// Session implements Connector.
func (m *Memory) Session(p account.Principal) Transport {
	return &memorySession{srv: m, identity: p}
}

type memorySession struct {
	srv      *Memory
	identity account.Principal
}

func (s *memorySession) Execute(ctx context.Context, stmt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{Op: "memory execute", Err: err}
	}

	m := s.srv
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.authenticate(s.identity); err != nil {
		return "", err
	}

	stmt = strings.TrimSpace(stmt)
	switch {
	case strings.HasPrefix(stmt, "SELECT 1"):
		return "1\n", nil

	case s.identity.Name != account.DefaultName:
		// Managed principals carry no access-management grants.
		return "", ParseServiceError(fmt.Sprintf(
			"Code: 497. DB::Exception: %s: Not enough privileges.", s.identity.Name))

	case strings.HasPrefix(stmt, "CREATE USER "):
		return "", m.createUser(strings.TrimPrefix(stmt, "CREATE USER "))

	case strings.HasPrefix(stmt, "ALTER USER "):
		return "", m.alterUser(strings.TrimPrefix(stmt, "ALTER USER "))

	case strings.HasPrefix(stmt, "DROP USER "):
		return "", m.dropUser(strings.TrimPrefix(stmt, "DROP USER "))

	case strings.Contains(stmt, "FROM system.users"):
		return m.listUsers(), nil

	default:
		return "", ParseServiceError(fmt.Sprintf(
			"Code: 62. DB::Exception: Syntax error: cannot parse %q.", stmt))
	}
}

func (s *memorySession) ExecuteTabular(ctx context.Context, stmt string) ([]Row, error) {
	out, err := s.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return parseTabular(out)
}

// authenticate checks the session identity against the account table.
// Callers hold the lock.
func (m *Memory) authenticate(p account.Principal) error {
	if p.Name == account.DefaultName {
		return nil
	}
	stored, ok := m.users[p.Name]
	if !ok {
		return authFailed(p.Name)
	}
	switch stored.Kind {
	case account.KindUnauthenticated:
		// NOT IDENTIFIED: no credential can ever match.
		return authFailed(p.Name)
	case account.KindNoCredential:
		if presentedSecret(p.Credential) != "" {
			return authFailed(p.Name)
		}
		return nil
	case account.KindPlainSecret:
		if p.Credential.Kind != account.KindPlainSecret || p.Credential.Secret != stored.Secret {
			return authFailed(p.Name)
		}
		return nil
	default:
		return authFailed(p.Name)
	}
}

// presentedSecret is the password string a session offers the service:
// empty for the two passwordless modes.
func presentedSecret(c account.Credential) string {
	if c.Kind == account.KindPlainSecret {
		return c.Secret
	}
	return ""
}

func authFailed(name string) *ServiceError {
	return ParseServiceError(fmt.Sprintf(
		"Code: 516. DB::Exception: %s: Authentication failed: password is incorrect, or there is no user with such name.", name))
}

func (m *Memory) createUser(rest string) error {
	name, clause, err := splitNameClause(rest)
	if err != nil {
		return err
	}
	if _, exists := m.users[name]; exists || name == account.DefaultName {
		return ParseServiceError(fmt.Sprintf(
			"Code: 493. DB::Exception: User `%s` already exists.", name))
	}
	cred, err := parseClause(clause)
	if err != nil {
		return err
	}
	m.users[name] = cred
	return nil
}

func (m *Memory) alterUser(rest string) error {
	name, tail, err := splitNameClause(rest)
	if err != nil {
		return err
	}
	cred, exists := m.users[name]
	if !exists {
		return unknownUser(name)
	}

	newName := name
	if after, ok := strings.CutPrefix(tail, "RENAME TO "); ok {
		fields := strings.SplitN(after, " ", 2)
		newName = fields[0]
		tail = ""
		if len(fields) == 2 {
			tail = strings.TrimSpace(fields[1])
		}
		if newName != name {
			if _, taken := m.users[newName]; taken || newName == account.DefaultName {
				return ParseServiceError(fmt.Sprintf(
					"Code: 493. DB::Exception: User `%s` already exists.", newName))
			}
		}
	}
	if tail != "" {
		if cred, err = parseClause(tail); err != nil {
			return err
		}
	}

	delete(m.users, name)
	m.users[newName] = cred
	return nil
}

func (m *Memory) dropUser(rest string) error {
	name := strings.TrimSpace(rest)
	if _, exists := m.users[name]; !exists {
		return unknownUser(name)
	}
	delete(m.users, name)
	return nil
}

func unknownUser(name string) *ServiceError {
	return ParseServiceError(fmt.Sprintf(
		"Code: 192. DB::Exception: There is no user `%s` in user directories.", name))
}

// listUsers renders the account table as TabSeparatedWithNames, default
// excluded, sorted by name.
func (m *Memory) listUsers() string {
	names := make([]string, 0, len(m.users))
	for name := range m.users {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("name\n")
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return b.String()
}

// splitNameClause splits "name REST" into the account name and the
// remainder (possibly empty).
func splitNameClause(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", ParseServiceError("Code: 62. DB::Exception: Syntax error: expected user name.")
	}
	fields := strings.SplitN(s, " ", 2)
	if len(fields) == 1 {
		return fields[0], "", nil
	}
	return fields[0], strings.TrimSpace(fields[1]), nil
}

// parseClause decodes an authentication clause back into a credential.
func parseClause(clause string) (account.Credential, error) {
	switch {
	case clause == "NOT IDENTIFIED":
		return account.Unauthenticated(), nil
	case clause == "IDENTIFIED WITH no_password":
		return account.NoCredential(), nil
	case strings.HasPrefix(clause, "IDENTIFIED WITH plaintext_password BY '") && strings.HasSuffix(clause, "'"):
		quoted := strings.TrimSuffix(strings.TrimPrefix(clause, "IDENTIFIED WITH plaintext_password BY '"), "'")
		return account.PlainSecret(strings.ReplaceAll(quoted, "''", "'")), nil
	default:
		return account.Credential{}, ParseServiceError(fmt.Sprintf(
			"Code: 62. DB::Exception: Syntax error: cannot parse authentication clause %q.", clause))
	}
}
