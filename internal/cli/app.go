// Package cli implements the interactive terminal shell: login loop,
// then the command REPL. The shell holds the session token it received
// from the registry and passes it into every dispatcher call.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iudanet/gatekeeper/internal/auth"
	"github.com/iudanet/gatekeeper/internal/dispatch"
	"github.com/iudanet/gatekeeper/internal/iocli"
	"github.com/iudanet/gatekeeper/internal/session"
	"github.com/iudanet/gatekeeper/internal/voice"
)

// AuditTrail - часть журнала аудита, нужная шеллу
type AuditTrail interface {
	LoginAttempt(username string, success bool) error
	Error(username, msg string) error
}

// Params collects the collaborators of the shell
type Params struct {
	IO         iocli.IO
	Engine     *auth.Engine
	Sessions   *session.Registry
	Dispatcher *dispatch.Dispatcher
	Voice      *voice.Integration
	Trail      AuditTrail
	Logger     *slog.Logger

	// DiscloseRemaining включает подсказку про оставшиеся попытки
	DiscloseRemaining bool
	// WarnDefaultAdmin выводит предупреждение о seed-учетке admin
	WarnDefaultAdmin bool
}

// App is the interactive shell
type App struct {
	io         iocli.IO
	engine     *auth.Engine
	sessions   *session.Registry
	dispatcher *dispatch.Dispatcher
	voice      *voice.Integration
	trail      AuditTrail
	logger     *slog.Logger
	disclose   bool
	warnSeed   bool
}

// New creates the shell
func New(p Params) *App {
	return &App{
		io:         p.IO,
		engine:     p.Engine,
		sessions:   p.Sessions,
		dispatcher: p.Dispatcher,
		voice:      p.Voice,
		trail:      p.Trail,
		logger:     p.Logger,
		disclose:   p.DiscloseRemaining,
		warnSeed:   p.WarnDefaultAdmin,
	}
}

// Run drives the shell until logout or end of input
func (a *App) Run(ctx context.Context) error {
	a.io.Println(strings.Repeat("=", 50))
	a.io.Println("Multi-User Access Control System")
	a.io.Println(strings.Repeat("=", 50))

	if a.warnSeed {
		a.io.Println("")
		a.io.Println("WARNING: a default administrative account was just created")
		a.io.Println("(admin / admin123). Log in and change its password NOW.")
	}

	token, err := a.login(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		// Пользователь отказался от повторной попытки
		return nil
	}

	a.commandLoop(ctx, token)
	return nil
}

// login запрашивает учетные данные до успеха или отказа
// Возвращает токен сессии; пустой токен означает выход без входа
func (a *App) login(ctx context.Context) (string, error) {
	for {
		a.io.Println("\n=== Login ===")

		username, err := a.io.ReadInput("Username: ")
		if err != nil {
			return "", nil // EOF на приглашении - выходим молча
		}
		password, err := a.io.ReadPassword("Password: ")
		if err != nil {
			return "", nil
		}

		if username == "" || password == "" {
			a.io.Println("Username and password are required.")
		} else if token := a.attemptLogin(ctx, username, password); token != "" {
			return token, nil
		}

		retry, err := a.io.ReadInput("\nTry again? (y/n): ")
		if err != nil || strings.ToLower(strings.TrimSpace(retry)) != "y" {
			a.io.Println("Goodbye!")
			return "", nil
		}
	}
}

// attemptLogin выполняет одну попытку входа
// Непустой результат - токен созданной сессии
func (a *App) attemptLogin(ctx context.Context, username, password string) string {
	res, err := a.engine.Authenticate(ctx, username, password)
	if err != nil {
		// Отказ хранилища - не failed login: в журнал попыток не пишем
		a.logger.Error("authentication unavailable", "username", username, "error", err)
		_ = a.trail.Error(username, "authentication error: "+err.Error())
		a.io.Println("Internal error, please try again later.")
		return ""
	}

	_ = a.trail.LoginAttempt(username, res.Status == auth.StatusSuccess)

	switch res.Status {
	case auth.StatusSuccess:
		sess, err := a.sessions.Create(username, res.Role)
		if err != nil {
			a.logger.Error("failed to create session", "username", username, "error", err)
			a.io.Println("Internal error, please try again later.")
			return ""
		}
		a.io.Println("\nLogin successful")
		a.io.Printf("Welcome, %s! (Role: %s)\n", username, res.Role)
		return sess.Token
	case auth.StatusAccountLocked:
		a.io.Println("Account is locked. Please contact an administrator.")
	default:
		msg := "Invalid username or password."
		if a.disclose && res.Remaining > 0 {
			msg += fmt.Sprintf(" %d attempt(s) remaining.", res.Remaining)
		}
		a.io.Println(msg)
	}
	return ""
}

// commandLoop обрабатывает команды до logout или конца ввода
func (a *App) commandLoop(ctx context.Context, token string) {
	a.io.Println("\nType 'help' for available commands.")
	if a.voice.Available() {
		a.io.Println("Type 'voice' to speak the next command.")
	}
	a.io.Println("Type 'logout' to exit.")

	for a.sessions.IsAuthenticated(token) {
		sess, err := a.sessions.Get(token)
		if err != nil {
			break
		}

		input, err := a.io.ReadInput(sess.Username + "> ")
		if err != nil {
			a.io.Println("\nGoodbye!")
			break
		}
		if input == "" {
			continue
		}

		command, args := dispatch.Parse(input)
		if command == "voice" {
			command, args = a.listenVoice(ctx)
			if command == "" {
				continue
			}
		}

		out, err := a.dispatcher.Execute(ctx, token, command, args)
		if err != nil {
			a.io.Printf("\n%v\n\n", err)
			continue
		}
		if out != "" {
			a.io.Printf("\n%s\n\n", out)
		}
	}

	a.io.Println("\nSession ended. Goodbye!")
}

// listenVoice принимает одну голосовую команду
func (a *App) listenVoice(ctx context.Context) (string, []string) {
	if !a.voice.Available() {
		a.io.Println("Voice recognition not available.")
		return "", nil
	}

	a.io.Println("Listening for voice command...")
	command, err := a.voice.Listen(ctx)
	if err != nil {
		if errors.Is(err, voice.ErrNotRecognized) {
			a.io.Println("No command recognized.")
		} else {
			a.io.Printf("Voice recognition error: %v\n", err)
		}
		return "", nil
	}

	a.io.Printf("Executing voice command: %s\n", command)
	return command, nil
}
