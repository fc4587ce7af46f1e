// Package voice maps spoken phrases onto dispatcher commands.
// No speech recognizer is bundled: the speech source is injected
// through the Transcriber interface, and without one the integration
// simply reports itself unavailable.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

//go:generate moq -out voice_mock.go . Transcriber

// Transcriber превращает произнесенную фразу в текст
type Transcriber interface {
	// Transcribe blocks until a phrase is heard or ctx is done
	Transcribe(ctx context.Context) (string, error)
}

// ErrNotRecognized indicates the spoken phrase matched no known command
var ErrNotRecognized = errors.New("voice command not recognized")

// phrase связывает команду с произносимыми формами
// Порядок важен: при конфликте ключевых слов выигрывает более ранняя
type phrase struct {
	command  string
	keywords []string
}

var phrases = []phrase{
	{command: "status", keywords: []string{"status", "state", "info", "information"}},
	{command: "logout", keywords: []string{"logout", "log out", "exit", "quit", "sign out"}},
	{command: "help", keywords: []string{"help", "commands", "menu"}},
	{command: "add user", keywords: []string{"add user", "create user", "new user"}},
	{command: "remove user", keywords: []string{"remove user", "delete user"}},
	{command: "unlock user", keywords: []string{"unlock user", "unlock account"}},
	{command: "view logs", keywords: []string{"view logs", "show logs", "logs", "log"}},
	{command: "change password", keywords: []string{"change password", "update password", "modify password"}},
	{command: "export logs", keywords: []string{"export logs", "export", "save logs"}},
}

// Map resolves a spoken phrase to a command
// Direct command matches win over keyword matches
func Map(spoken string) (string, bool) {
	spoken = strings.ToLower(strings.TrimSpace(spoken))
	if spoken == "" {
		return "", false
	}

	// Прямое совпадение с именем команды
	for _, p := range phrases {
		if strings.Contains(spoken, p.command) {
			return p.command, true
		}
	}

	// Совпадение по ключевым словам
	for _, p := range phrases {
		for _, kw := range p.keywords {
			if strings.Contains(spoken, kw) {
				return p.command, true
			}
		}
	}

	return "", false
}

// Commands returns the list of voice-reachable commands
func Commands() []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, p.command)
	}
	return out
}

// Integration binds a Transcriber to the phrase table
type Integration struct {
	transcriber Transcriber
}

// NewIntegration creates a voice integration
// transcriber may be nil, in which case Available reports false
func NewIntegration(transcriber Transcriber) *Integration {
	return &Integration{transcriber: transcriber}
}

// Available reports whether a speech source is wired in
func (i *Integration) Available() bool {
	return i.transcriber != nil
}

// Listen waits for one spoken phrase and maps it to a command
// Returns ErrNotRecognized when the phrase matches nothing
func (i *Integration) Listen(ctx context.Context) (string, error) {
	if i.transcriber == nil {
		return "", fmt.Errorf("no transcriber configured")
	}

	spoken, err := i.transcriber.Transcribe(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe: %w", err)
	}

	command, ok := Map(spoken)
	if !ok {
		return "", ErrNotRecognized
	}

	return command, nil
}
