package sut_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlkit/prowl/internal/account"
	"github.com/prowlkit/prowl/internal/sut"
)

func newTestClient(t *testing.T) *sut.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sut.NewClient(sut.NewMemory(), logger)
}

func TestMemory_CreateListDrop(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreateUser(ctx, "alice", account.PlainSecret("pw")))
	require.NoError(t, client.CreateUser(ctx, "bob", account.NoCredential()))

	names, err := client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	require.NoError(t, client.DropUser(ctx, "alice"))
	names, err = client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, names)
}

func TestMemory_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreateUser(ctx, "alice", account.NoCredential()))
	err := client.CreateUser(ctx, "alice", account.PlainSecret("other"))
	assert.Equal(t, sut.KindAlreadyExists, sut.KindOf(err))

	err = client.CreateUser(ctx, account.DefaultName, account.NoCredential())
	assert.Equal(t, sut.KindAlreadyExists, sut.KindOf(err))
}

func TestMemory_AlterAndDropMissing(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	cred := account.NoCredential()
	err := client.AlterUser(ctx, "ghost", "", &cred)
	assert.Equal(t, sut.KindUnknownPrincipal, sut.KindOf(err))

	err = client.DropUser(ctx, "ghost")
	assert.Equal(t, sut.KindUnknownPrincipal, sut.KindOf(err))
}

func TestMemory_Login(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreateUser(ctx, "alice", account.PlainSecret("pw")))
	require.NoError(t, client.CreateUser(ctx, "bob", account.NoCredential()))
	require.NoError(t, client.CreateUser(ctx, "carol", account.Unauthenticated()))

	// correct credentials authenticate
	assert.NoError(t, client.TryLogin(ctx, account.Principal{Name: "alice", Credential: account.PlainSecret("pw")}))
	assert.NoError(t, client.TryLogin(ctx, account.Principal{Name: "bob", Credential: account.NoCredential()}))

	// wrong secret, wrong mode, NOT IDENTIFIED, and absent name all fail
	for _, p := range []account.Principal{
		{Name: "alice", Credential: account.PlainSecret("wrong")},
		{Name: "alice", Credential: account.NoCredential()},
		{Name: "bob", Credential: account.PlainSecret("anything")},
		{Name: "carol", Credential: account.Unauthenticated()},
		{Name: "carol", Credential: account.NoCredential()},
		{Name: "nobody", Credential: account.PlainSecret("pw")},
	} {
		err := client.TryLogin(ctx, p)
		assert.Equal(t, sut.KindAuthRejected, sut.KindOf(err), "principal %s", p.Name)
	}
}

func TestMemory_AlterRenameAndCredential(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreateUser(ctx, "alice", account.PlainSecret("old")))

	// rename only: credential survives
	require.NoError(t, client.AlterUser(ctx, "alice", "alicia", nil))
	assert.NoError(t, client.TryLogin(ctx, account.Principal{Name: "alicia", Credential: account.PlainSecret("old")}))
	assert.Equal(t, sut.KindAuthRejected,
		sut.KindOf(client.TryLogin(ctx, account.Principal{Name: "alice", Credential: account.PlainSecret("old")})))

	// credential only: name survives, old secret stops working
	cred := account.PlainSecret("new")
	require.NoError(t, client.AlterUser(ctx, "alicia", "", &cred))
	assert.NoError(t, client.TryLogin(ctx, account.Principal{Name: "alicia", Credential: account.PlainSecret("new")}))
	assert.Equal(t, sut.KindAuthRejected,
		sut.KindOf(client.TryLogin(ctx, account.Principal{Name: "alicia", Credential: account.PlainSecret("old")})))

	// both at once
	cred = account.NoCredential()
	require.NoError(t, client.AlterUser(ctx, "alicia", "alice", &cred))
	assert.NoError(t, client.TryLogin(ctx, account.Principal{Name: "alice", Credential: account.NoCredential()}))
}

func TestMemory_AlterRenameCollision(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreateUser(ctx, "alice", account.NoCredential()))
	require.NoError(t, client.CreateUser(ctx, "bob", account.NoCredential()))

	err := client.AlterUser(ctx, "alice", "bob", nil)
	assert.Equal(t, sut.KindAlreadyExists, sut.KindOf(err))

	// failed rename mutated nothing
	names, listErr := client.ListUsers(ctx)
	require.NoError(t, listErr)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestMemory_SecretWithQuoteRoundTrips(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	secret := "o'brien's pass"
	require.NoError(t, client.CreateUser(ctx, "alice", account.PlainSecret(secret)))
	assert.NoError(t, client.TryLogin(ctx, account.Principal{Name: "alice", Credential: account.PlainSecret(secret)}))
}

func TestMemory_ManagedPrincipalCannotManage(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreateUser(ctx, "alice", account.PlainSecret("pw")))
	asAlice := client.As(account.Principal{Name: "alice", Credential: account.PlainSecret("pw")})

	err := asAlice.CreateUser(ctx, "eve", account.NoCredential())
	require.Error(t, err)
	assert.Equal(t, sut.KindUnknown, sut.KindOf(err))
}

func TestMemory_DeleteAllUsers(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, client.CreateUser(ctx, name, account.NoCredential()))
	}
	require.NoError(t, client.DeleteAllUsers(ctx))

	names, err := client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	// idempotent on an empty service
	assert.NoError(t, client.DeleteAllUsers(ctx))
}

func TestClient_WaitReady(t *testing.T) {
	client := newTestClient(t)
	assert.NoError(t, client.WaitReady(context.Background(), time.Second, 10*time.Millisecond))
}

func TestMemory_ContextCancelled(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListUsers(ctx)
	assert.True(t, sut.IsTransportError(err))
}
