package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gatekeeper/internal/admin"
	"github.com/iudanet/gatekeeper/internal/audit"
	"github.com/iudanet/gatekeeper/internal/auth"
	"github.com/iudanet/gatekeeper/internal/crypto"
	"github.com/iudanet/gatekeeper/internal/dispatch"
	"github.com/iudanet/gatekeeper/internal/session"
	"github.com/iudanet/gatekeeper/internal/storage"
	"github.com/iudanet/gatekeeper/internal/storage/jsonfile"
	"github.com/iudanet/gatekeeper/internal/voice"
)

// scriptedIO проигрывает заранее заданный ввод и накапливает вывод
// Исчерпание скрипта равносильно EOF на терминале
type scriptedIO struct {
	inputs    []string
	passwords []string
	out       strings.Builder
}

func (s *scriptedIO) Println(a ...any) {
	s.out.WriteString(fmt.Sprintln(a...))
}

func (s *scriptedIO) Printf(format string, a ...any) {
	s.out.WriteString(fmt.Sprintf(format, a...))
}

func (s *scriptedIO) ReadInput(prompt string) (string, error) {
	if len(s.inputs) == 0 {
		return "", io.EOF
	}
	next := s.inputs[0]
	s.inputs = s.inputs[1:]
	return next, nil
}

func (s *scriptedIO) ReadPassword(prompt string) (string, error) {
	if len(s.passwords) == 0 {
		return "", io.EOF
	}
	next := s.passwords[0]
	s.passwords = s.passwords[1:]
	return next, nil
}

// собираем приложение поверх полного стека с jsonfile-хранилищем
func createTestApp(t *testing.T, stdio *scriptedIO, disclose bool) (*App, *session.Registry) {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()
	hasher := crypto.NewSHA256Hasher()

	store, err := jsonfile.New(ctx, filepath.Join(dir, "users.json"), storage.DefaultAdmin(hasher))
	require.NoError(t, err)

	trail, err := audit.New(filepath.Join(dir, "logs.txt"), filepath.Join(dir, "logs.csv"))
	require.NoError(t, err)

	engine := auth.NewEngine(store, hasher, 0)
	adminSvc := admin.NewService(store, engine, hasher, trail)
	sessions := session.NewRegistry()
	dispatcher := dispatch.New(sessions, engine, adminSvc, trail, stdio)

	app := New(Params{
		IO:                stdio,
		Engine:            engine,
		Sessions:          sessions,
		Dispatcher:        dispatcher,
		Voice:             voice.NewIntegration(nil),
		Trail:             trail,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		DiscloseRemaining: disclose,
		WarnDefaultAdmin:  store.Seeded(),
	})

	return app, sessions
}

func TestRun_LoginAndLogout(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"admin", "status", "logout"},
		passwords: []string{"admin123"},
	}

	app, sessions := createTestApp(t, stdio, true)
	require.NoError(t, app.Run(context.Background()))

	out := stdio.out.String()
	assert.Contains(t, out, "Multi-User Access Control System")
	assert.Contains(t, out, "Login successful")
	assert.Contains(t, out, "Welcome, admin! (Role: admin)")
	assert.Contains(t, out, "Logged in as: admin")
	assert.Contains(t, out, "Logged out successfully")
	assert.Contains(t, out, "Session ended. Goodbye!")

	// Seed-предупреждение показано: хранилище только что создано
	assert.Contains(t, out, "change its password NOW")

	// После logout живых сессий нет
	assert.False(t, sessions.IsAuthenticated(""))
}

func TestRun_DeclineRetry(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"admin", "n"},
		passwords: []string{"wrong"},
	}

	app, _ := createTestApp(t, stdio, true)
	require.NoError(t, app.Run(context.Background()))

	out := stdio.out.String()
	assert.Contains(t, out, "Invalid username or password. 2 attempt(s) remaining.")
	assert.Contains(t, out, "Goodbye!")
	assert.NotContains(t, out, "Welcome")
}

// С выключенным disclose подсказка про оставшиеся попытки не выводится
func TestRun_NoRemainingHint(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"admin", "n"},
		passwords: []string{"wrong"},
	}

	app, _ := createTestApp(t, stdio, false)
	require.NoError(t, app.Run(context.Background()))

	out := stdio.out.String()
	assert.Contains(t, out, "Invalid username or password.")
	assert.NotContains(t, out, "remaining")
}

func TestRun_LockoutAfterThreeFailures(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"admin", "y", "admin", "y", "admin", "n"},
		passwords: []string{"wrong", "wrong", "wrong"},
	}

	app, _ := createTestApp(t, stdio, true)
	require.NoError(t, app.Run(context.Background()))

	out := stdio.out.String()
	assert.Contains(t, out, "2 attempt(s) remaining")
	assert.Contains(t, out, "1 attempt(s) remaining")
	assert.Contains(t, out, "Account is locked. Please contact an administrator.")
}

// Неизвестный пользователь получает то же сообщение, что и неверный
// пароль, без подсказки про попытки
func TestRun_UnknownUserUniformMessage(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"ghost", "n"},
		passwords: []string{"anything"},
	}

	app, _ := createTestApp(t, stdio, true)
	require.NoError(t, app.Run(context.Background()))

	out := stdio.out.String()
	assert.Contains(t, out, "Invalid username or password.")
	assert.NotContains(t, out, "remaining")
}

func TestRun_EmptyCredentials(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"", "n"},
		passwords: []string{""},
	}

	app, _ := createTestApp(t, stdio, true)
	require.NoError(t, app.Run(context.Background()))

	assert.Contains(t, stdio.out.String(), "Username and password are required.")
}

// Команда voice без настроенного распознавателя
func TestRun_VoiceUnavailable(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"admin", "voice", "logout"},
		passwords: []string{"admin123"},
	}

	app, _ := createTestApp(t, stdio, true)
	require.NoError(t, app.Run(context.Background()))

	assert.Contains(t, stdio.out.String(), "Voice recognition not available.")
}

// EOF посреди командного цикла завершает сессию аккуратно
func TestRun_EOFInCommandLoop(t *testing.T) {
	stdio := &scriptedIO{
		inputs:    []string{"admin"},
		passwords: []string{"admin123"},
	}

	app, _ := createTestApp(t, stdio, true)
	require.NoError(t, app.Run(context.Background()))

	assert.Contains(t, stdio.out.String(), "Session ended. Goodbye!")
}
