// Package dispatch parses and executes REPL commands against a live
// session. The caller passes the session token into every call; the
// dispatcher holds no notion of a "current" session.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iudanet/gatekeeper/internal/admin"
	"github.com/iudanet/gatekeeper/internal/audit"
	"github.com/iudanet/gatekeeper/internal/auth"
	"github.com/iudanet/gatekeeper/internal/iocli"
	"github.com/iudanet/gatekeeper/internal/models"
	"github.com/iudanet/gatekeeper/internal/session"
	"github.com/iudanet/gatekeeper/internal/storage"
	"github.com/iudanet/gatekeeper/internal/validation"
)

// voiceForms нормализует многословные голосовые команды к канонической
// форме диспетчера
var voiceForms = map[string]string{
	"add user":        "add_user",
	"remove user":     "remove_user",
	"unlock user":     "unlock_user",
	"view logs":       "view_logs",
	"change password": "change_password",
	"export logs":     "export_logs",
	"list users":      "list_users",
}

// adminCommands требуют роль admin
var adminCommands = map[string]bool{
	"add_user":    true,
	"remove_user": true,
	"unlock_user": true,
	"list_users":  true,
	"view_logs":   true,
	"export_logs": true,
}

// Dispatcher routes parsed commands to the core and renders outcomes
type Dispatcher struct {
	sessions *session.Registry
	engine   *auth.Engine
	admin    *admin.Service
	trail    *audit.Trail
	io       iocli.IO
}

// New creates a command dispatcher
func New(sessions *session.Registry, engine *auth.Engine, adminSvc *admin.Service, trail *audit.Trail, io iocli.IO) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		engine:   engine,
		admin:    adminSvc,
		trail:    trail,
		io:       io,
	}
}

// Parse splits a raw input line into a lowercase command and its args
func Parse(input string) (string, []string) {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(parts[0]), parts[1:]
}

// Execute runs one command on behalf of the session identified by token.
// The returned string is the user-facing output; a returned error is a
// user-facing failure message. Storage failures are wrapped errors too,
// distinguishable via errors.Is by callers that need to.
func (d *Dispatcher) Execute(ctx context.Context, token, command string, args []string) (string, error) {
	sess, err := d.sessions.Get(token)
	if err != nil {
		return "", fmt.Errorf("you must be logged in to execute commands")
	}

	_ = d.sessions.UpdateActivity(token)

	command = strings.ToLower(strings.TrimSpace(command))
	if canonical, ok := voiceForms[command]; ok {
		command = canonical
	}

	if adminCommands[command] && sess.Role != models.RoleAdmin {
		_ = d.trail.Command(sess.Username, command, false)
		return "", fmt.Errorf("permission denied: admin access required")
	}

	switch command {
	case "help":
		return d.helpMenu(sess.Role == models.RoleAdmin), nil
	case "status":
		return d.handleStatus(sess)
	case "logout":
		return d.handleLogout(token, sess.Username)
	case "change_password":
		return d.handleChangePassword(ctx, sess.Username, args)
	case "add_user":
		return d.handleAddUser(ctx, sess.Username, args)
	case "remove_user":
		return d.handleRemoveUser(ctx, sess.Username, args)
	case "unlock_user":
		return d.handleUnlockUser(ctx, sess.Username, args)
	case "list_users":
		return d.handleListUsers(ctx, sess.Username)
	case "view_logs":
		return d.handleViewLogs(sess.Username, args)
	case "export_logs":
		return d.handleExportLogs(sess.Username)
	default:
		_ = d.trail.Command(sess.Username, command, false)
		return "", fmt.Errorf("unknown command: %s. Type 'help' for available commands", command)
	}
}

func (d *Dispatcher) helpMenu(isAdmin bool) string {
	var b strings.Builder
	b.WriteString("\n=== Available Commands ===\n\n")
	b.WriteString("General Commands:\n")
	b.WriteString("  status          - Show current session information\n")
	b.WriteString("  logout          - Log out of the system\n")
	b.WriteString("  help            - Show this help menu\n")
	b.WriteString("  change_password - Change your password\n")

	if isAdmin {
		b.WriteString("\nAdmin Commands:\n")
		b.WriteString("  add_user <username> <password> [role]  - Add a new user\n")
		b.WriteString("  remove_user <username>                 - Remove a user\n")
		b.WriteString("  unlock_user <username>                 - Unlock a locked account\n")
		b.WriteString("  list_users                             - List user accounts\n")
		b.WriteString("  view_logs [lines]                      - View system logs\n")
		b.WriteString("  export_logs                            - Export logs to CSV\n")
	}

	b.WriteString("\nVoice Commands:\n")
	b.WriteString("  All typed commands can also be issued via voice\n")
	b.WriteString("  Use 'voice' command to speak the next command\n")

	return b.String()
}

func (d *Dispatcher) handleStatus(sess *models.Session) (string, error) {
	_ = d.trail.Command(sess.Username, "status", true)

	return fmt.Sprintf("Logged in as: %s\nRole: %s\nSession ID: %s\nSession started: %s",
		sess.Username, sess.Role, sess.ID, sess.CreatedAt.Format("2006-01-02 15:04:05")), nil
}

func (d *Dispatcher) handleLogout(token, username string) (string, error) {
	_ = d.trail.Command(username, "logout", true)

	if err := d.sessions.End(token); err != nil {
		return "", fmt.Errorf("failed to end session: %w", err)
	}
	return "Logged out successfully", nil
}

func (d *Dispatcher) handleChangePassword(ctx context.Context, username string, args []string) (string, error) {
	var oldPassword, newPassword string

	switch len(args) {
	case 0:
		// Голосовой путь или вызов без аргументов: запрашиваем пароли
		// интерактивно, без эха
		var err error
		oldPassword, err = d.io.ReadPassword("Enter current password: ")
		if err != nil {
			return "", fmt.Errorf("command cancelled")
		}
		newPassword, err = d.io.ReadPassword("Enter new password: ")
		if err != nil {
			return "", fmt.Errorf("command cancelled")
		}
	case 2:
		oldPassword, newPassword = args[0], args[1]
	default:
		return "", fmt.Errorf("usage: change_password <old_password> <new_password>")
	}

	if err := validation.ValidateNewPassword(newPassword); err != nil {
		return "", err
	}

	res, err := d.engine.ChangePassword(ctx, username, oldPassword, newPassword)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", fmt.Errorf("user does not exist")
		}
		return "", fmt.Errorf("failed to change password: %w", err)
	}

	switch res.Status {
	case auth.StatusSuccess:
		_ = d.trail.Command(username, "change_password", true)
		return "Password changed successfully", nil
	case auth.StatusInvalidOldPassword:
		_ = d.trail.Command(username, "change_password", false)
		return "", fmt.Errorf("current password is incorrect")
	case auth.StatusAccountLocked:
		_ = d.trail.Command(username, "change_password", false)
		return "", fmt.Errorf("account is locked. Please contact an administrator")
	default:
		return "", fmt.Errorf("unexpected outcome: %s", res.Status)
	}
}

func (d *Dispatcher) handleAddUser(ctx context.Context, actor string, args []string) (string, error) {
	var username, password, roleInput string

	switch {
	case len(args) == 0:
		var err error
		username, err = d.io.ReadInput("Enter username: ")
		if err != nil {
			return "", fmt.Errorf("command cancelled")
		}
		password, err = d.io.ReadPassword("Enter password: ")
		if err != nil {
			return "", fmt.Errorf("command cancelled")
		}
		roleInput, err = d.io.ReadInput("Enter role (user/admin, default: user): ")
		if err != nil {
			return "", fmt.Errorf("command cancelled")
		}
	case len(args) >= 2:
		username, password = args[0], args[1]
		if len(args) > 2 {
			roleInput = args[2]
		}
	default:
		return "", fmt.Errorf("usage: add_user <username> <password> [role]")
	}

	role := models.RoleUser
	if roleInput != "" {
		parsed, err := models.ParseRole(roleInput)
		if err != nil {
			return "", err
		}
		role = parsed
	}

	if err := d.admin.AddUser(ctx, actor, username, password, role); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return "", fmt.Errorf("user '%s' already exists", username)
		}
		return "", err
	}

	return fmt.Sprintf("User '%s' added successfully", username), nil
}

func (d *Dispatcher) handleRemoveUser(ctx context.Context, actor string, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: remove_user <username>")
	}
	target := args[0]

	// Подтверждение: удаление необратимо
	d.io.Printf("Warning: You are about to remove user '%s'.\n", target)
	confirm, err := d.io.ReadInput("Type 'yes' to confirm: ")
	if err != nil || !strings.EqualFold(strings.TrimSpace(confirm), "yes") {
		return "", fmt.Errorf("user removal cancelled")
	}

	if err := d.admin.RemoveUser(ctx, actor, target); err != nil {
		if errors.Is(err, admin.ErrSelfRemoval) {
			return "", fmt.Errorf("cannot remove your own account")
		}
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", fmt.Errorf("user '%s' does not exist", target)
		}
		return "", err
	}

	return fmt.Sprintf("User '%s' removed successfully", target), nil
}

func (d *Dispatcher) handleUnlockUser(ctx context.Context, actor string, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: unlock_user <username>")
	}
	target := args[0]

	if err := d.admin.UnlockUser(ctx, actor, target); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", fmt.Errorf("user '%s' does not exist", target)
		}
		return "", err
	}

	return fmt.Sprintf("User '%s' unlocked successfully", target), nil
}

func (d *Dispatcher) handleListUsers(ctx context.Context, actor string) (string, error) {
	users, err := d.admin.ListUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list users: %w", err)
	}

	_ = d.trail.Command(actor, "list_users", true)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-32s %-6s %s\n", "USERNAME", "ROLE", "LOCKED"))
	for _, u := range users {
		locked := "no"
		if u.Locked {
			locked = "yes"
		}
		b.WriteString(fmt.Sprintf("%-32s %-6s %s\n", u.Username, u.Role, locked))
	}
	return b.String(), nil
}

func (d *Dispatcher) handleViewLogs(actor string, args []string) (string, error) {
	lines := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid number of lines. Usage: view_logs [lines]")
		}
		lines = n
	}

	return d.admin.ViewLogs(actor, lines)
}

func (d *Dispatcher) handleExportLogs(actor string) (string, error) {
	path, err := d.admin.ExportLogs(actor)
	if err != nil {
		return "", fmt.Errorf("failed to export logs: %w", err)
	}
	return "Logs exported to " + path, nil
}
