package account_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlkit/prowl/internal/account"
)

func TestCredential_Clause(t *testing.T) {
	tests := []struct {
		name string
		cred account.Credential
		want string
	}{
		{
			name: "unauthenticated",
			cred: account.Unauthenticated(),
			want: "NOT IDENTIFIED",
		},
		{
			name: "no credential",
			cred: account.NoCredential(),
			want: "IDENTIFIED WITH no_password",
		},
		{
			name: "plain secret",
			cred: account.PlainSecret("hunter2"),
			want: "IDENTIFIED WITH plaintext_password BY 'hunter2'",
		},
		{
			name: "secret with embedded quote",
			cred: account.PlainSecret("it's"),
			want: "IDENTIFIED WITH plaintext_password BY 'it''s'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.Clause())
		})
	}
}

func TestCredential_StringHidesSecret(t *testing.T) {
	s := account.PlainSecret("topsecret").String()
	assert.NotContains(t, s, "topsecret")
	assert.Contains(t, s, "plain_secret")
}

func TestCredential_EncodeDecode(t *testing.T) {
	for _, cred := range []account.Credential{
		account.Unauthenticated(),
		account.NoCredential(),
		account.PlainSecret("abc"),
	} {
		got, err := account.DecodeCredential(cred.Encode())
		require.NoError(t, err)
		assert.Equal(t, cred, got)
	}
}

func TestDecodeCredential_Invalid(t *testing.T) {
	_, err := account.DecodeCredential("not a map")
	assert.Error(t, err)

	_, err = account.DecodeCredential(map[string]any{"kind": "rsa"})
	assert.Error(t, err)

	_, err = account.DecodeCredential(map[string]any{"kind": "plain_secret"})
	assert.Error(t, err)
}

func TestStatements(t *testing.T) {
	assert.Equal(t,
		"CREATE USER alice IDENTIFIED WITH no_password",
		account.CreateStatement("alice", account.NoCredential()),
	)
	assert.Equal(t,
		"DROP USER alice",
		account.DropStatement("alice"),
	)

	cred := account.PlainSecret("s")
	assert.Equal(t,
		"ALTER USER alice RENAME TO bob IDENTIFIED WITH plaintext_password BY 's'",
		account.AlterStatement("alice", "bob", &cred),
	)
	assert.Equal(t,
		"ALTER USER alice RENAME TO bob",
		account.AlterStatement("alice", "bob", nil),
	)
	assert.Equal(t,
		"ALTER USER alice NOT IDENTIFIED",
		account.AlterStatement("alice", "", ptr(account.Unauthenticated())),
	)
}

func ptr(c account.Credential) *account.Credential { return &c }
