package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gatekeeper/internal/admin"
	"github.com/iudanet/gatekeeper/internal/audit"
	"github.com/iudanet/gatekeeper/internal/auth"
	"github.com/iudanet/gatekeeper/internal/crypto"
	"github.com/iudanet/gatekeeper/internal/models"
	"github.com/iudanet/gatekeeper/internal/session"
	"github.com/iudanet/gatekeeper/internal/storage"
	"github.com/iudanet/gatekeeper/internal/storage/jsonfile"
)

// ioStub - скриптуемая реализация iocli.IO для тестов диспетчера
type ioStub struct {
	inputs    []string
	passwords []string
	output    []string
}

func (s *ioStub) Println(a ...any) {
	s.output = append(s.output, fmt.Sprintln(a...))
}

func (s *ioStub) Printf(format string, a ...any) {
	s.output = append(s.output, fmt.Sprintf(format, a...))
}

func (s *ioStub) ReadInput(prompt string) (string, error) {
	if len(s.inputs) == 0 {
		return "", fmt.Errorf("no scripted input")
	}
	next := s.inputs[0]
	s.inputs = s.inputs[1:]
	return next, nil
}

func (s *ioStub) ReadPassword(prompt string) (string, error) {
	if len(s.passwords) == 0 {
		return "", fmt.Errorf("no scripted password")
	}
	next := s.passwords[0]
	s.passwords = s.passwords[1:]
	return next, nil
}

type fixture struct {
	dispatcher *Dispatcher
	sessions   *session.Registry
	store      storage.CredentialStore
	engine     *auth.Engine
	io         *ioStub
	adminTok   string
	userTok    string
}

// собираем полный стек: jsonfile-хранилище с seed admin, пользователь
// alice, по одной живой сессии на каждого
func createFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()
	hasher := crypto.NewSHA256Hasher()

	store, err := jsonfile.New(ctx, filepath.Join(dir, "users.json"), storage.DefaultAdmin(hasher))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, &models.User{
		Username:     "alice",
		PasswordHash: hasher.Hash("alicepw"),
		Role:         models.RoleUser,
	}))

	trail, err := audit.New(filepath.Join(dir, "logs.txt"), filepath.Join(dir, "logs.csv"))
	require.NoError(t, err)

	engine := auth.NewEngine(store, hasher, 0)
	adminSvc := admin.NewService(store, engine, hasher, trail)
	sessions := session.NewRegistry()
	io := &ioStub{}

	adminSess, err := sessions.Create("admin", models.RoleAdmin)
	require.NoError(t, err)
	userSess, err := sessions.Create("alice", models.RoleUser)
	require.NoError(t, err)

	return &fixture{
		dispatcher: New(sessions, engine, adminSvc, trail, io),
		sessions:   sessions,
		store:      store,
		engine:     engine,
		io:         io,
		adminTok:   adminSess.Token,
		userTok:    userSess.Token,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		command string
		args    []string
	}{
		{name: "bare command", input: "status", command: "status"},
		{name: "command with args", input: "add_user bob pw123 admin", command: "add_user", args: []string{"bob", "pw123", "admin"}},
		{name: "uppercase command", input: "LOGOUT", command: "logout"},
		{name: "extra whitespace", input: "  view_logs   10  ", command: "view_logs", args: []string{"10"}},
		{name: "empty", input: "", command: ""},
		{name: "whitespace only", input: "   ", command: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, args := Parse(tt.input)
			assert.Equal(t, tt.command, command)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestExecute_RequiresSession(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	_, err := f.dispatcher.Execute(ctx, "bogus-token", "status", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be logged in")
}

func TestExecute_RefreshesActivity(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	before, err := f.sessions.Get(f.userTok)
	require.NoError(t, err)

	_, err = f.dispatcher.Execute(ctx, f.userTok, "status", nil)
	require.NoError(t, err)

	after, err := f.sessions.Get(f.userTok)
	require.NoError(t, err)
	assert.False(t, after.LastActivity.Before(before.LastActivity))
}

func TestExecute_Status(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	out, err := f.dispatcher.Execute(ctx, f.userTok, "status", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as: alice")
	assert.Contains(t, out, "Role: user")

	// Токен в выводе не фигурирует
	assert.NotContains(t, out, f.userTok)
}

func TestExecute_Logout(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	out, err := f.dispatcher.Execute(ctx, f.userTok, "logout", nil)
	require.NoError(t, err)
	assert.Equal(t, "Logged out successfully", out)
	assert.False(t, f.sessions.IsAuthenticated(f.userTok))

	// Сессия администратора не затронута
	assert.True(t, f.sessions.IsAuthenticated(f.adminTok))
}

func TestExecute_Help(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	userHelp, err := f.dispatcher.Execute(ctx, f.userTok, "help", nil)
	require.NoError(t, err)
	assert.Contains(t, userHelp, "General Commands")
	assert.NotContains(t, userHelp, "Admin Commands")

	adminHelp, err := f.dispatcher.Execute(ctx, f.adminTok, "help", nil)
	require.NoError(t, err)
	assert.Contains(t, adminHelp, "Admin Commands")
	assert.Contains(t, adminHelp, "unlock_user")
}

func TestExecute_AdminGate(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	for _, command := range []string{"add_user", "remove_user", "unlock_user", "list_users", "view_logs", "export_logs"} {
		_, err := f.dispatcher.Execute(ctx, f.userTok, command, []string{"x", "y"})
		require.Error(t, err, command)
		assert.Contains(t, err.Error(), "permission denied", command)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	_, err := f.dispatcher.Execute(ctx, f.userTok, "frobnicate", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: frobnicate")
	assert.Contains(t, err.Error(), "help")
}

// Голосовые многословные формы нормализуются к канонической команде
func TestExecute_VoiceFormNormalization(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	out, err := f.dispatcher.Execute(ctx, f.adminTok, "view logs", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "=== System Logs ===")

	f.io.inputs = []string{"bob", "user"}
	f.io.passwords = []string{"bobpw"}
	out, err = f.dispatcher.Execute(ctx, f.adminTok, "add user", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "added successfully")
}

func TestExecute_AddUser(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	out, err := f.dispatcher.Execute(ctx, f.adminTok, "add_user", []string{"bob", "bobpw", "admin"})
	require.NoError(t, err)
	assert.Equal(t, "User 'bob' added successfully", out)

	user, err := f.store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	// Повторное добавление отклоняется
	_, err = f.dispatcher.Execute(ctx, f.adminTok, "add_user", []string{"bob", "bobpw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// Роль по умолчанию - user
	out, err = f.dispatcher.Execute(ctx, f.adminTok, "add_user", []string{"carol", "carolpw"})
	require.NoError(t, err)
	assert.Contains(t, out, "carol")

	user, err = f.store.Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)

	// Неизвестная роль
	_, err = f.dispatcher.Execute(ctx, f.adminTok, "add_user", []string{"dave", "davepw", "root"})
	require.Error(t, err)

	// Недостаточно аргументов
	_, err = f.dispatcher.Execute(ctx, f.adminTok, "add_user", []string{"dave"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}

func TestExecute_RemoveUser(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	// Подтверждение обязательно
	f.io.inputs = []string{"no"}
	_, err := f.dispatcher.Execute(ctx, f.adminTok, "remove_user", []string{"alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")

	_, err = f.store.Get(ctx, "alice")
	require.NoError(t, err)

	f.io.inputs = []string{"yes"}
	out, err := f.dispatcher.Execute(ctx, f.adminTok, "remove_user", []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "User 'alice' removed successfully", out)

	_, err = f.store.Get(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	// Свою учетную запись удалить нельзя
	f.io.inputs = []string{"yes"}
	_, err = f.dispatcher.Execute(ctx, f.adminTok, "remove_user", []string{"admin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "own account")
}

func TestExecute_UnlockUser(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	require.NoError(t, f.store.SetLocked(ctx, "alice", true))

	out, err := f.dispatcher.Execute(ctx, f.adminTok, "unlock_user", []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "User 'alice' unlocked successfully", out)

	user, err := f.store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, user.Locked)

	_, err = f.dispatcher.Execute(ctx, f.adminTok, "unlock_user", []string{"ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestExecute_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	out, err := f.dispatcher.Execute(ctx, f.userTok, "change_password", []string{"alicepw", "newpw"})
	require.NoError(t, err)
	assert.Equal(t, "Password changed successfully", out)

	res, err := f.engine.Authenticate(ctx, "alice", "newpw")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusSuccess, res.Status)

	// Неверный текущий пароль
	_, err = f.dispatcher.Execute(ctx, f.userTok, "change_password", []string{"wrong", "another"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current password is incorrect")

	// Без аргументов пароли запрашиваются интерактивно
	f.io.passwords = []string{"newpw", "third"}
	out, err = f.dispatcher.Execute(ctx, f.userTok, "change_password", nil)
	require.NoError(t, err)
	assert.Equal(t, "Password changed successfully", out)

	// Один аргумент - ошибка использования
	_, err = f.dispatcher.Execute(ctx, f.userTok, "change_password", []string{"only-old"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")

	// Слишком короткий новый пароль отклоняется до обращения к движку
	_, err = f.dispatcher.Execute(ctx, f.userTok, "change_password", []string{"third", "ab"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "new password must be at least")
}

func TestExecute_ListUsers(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	out, err := f.dispatcher.Execute(ctx, f.adminTok, "list_users", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "alice")
}

func TestExecute_ViewLogs(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	// Наполняем журнал
	_, err := f.dispatcher.Execute(ctx, f.userTok, "status", nil)
	require.NoError(t, err)

	out, err := f.dispatcher.Execute(ctx, f.adminTok, "view_logs", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "=== System Logs ===")
	assert.Contains(t, out, "Command 'status' executed - SUCCESS")

	// Ограничение по числу строк
	out, err = f.dispatcher.Execute(ctx, f.adminTok, "view_logs", []string{"1"})
	require.NoError(t, err)
	assert.NotContains(t, out, "=== System Logs ===")

	_, err = f.dispatcher.Execute(ctx, f.adminTok, "view_logs", []string{"ten"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number of lines")
}

func TestExecute_ExportLogs(t *testing.T) {
	ctx := context.Background()
	f := createFixture(t)

	out, err := f.dispatcher.Execute(ctx, f.adminTok, "export_logs", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Logs exported to")
	assert.Contains(t, out, "logs.csv")
}
