// Package audit implements the append-only audit trail.
// Entries are written only by callers after they receive an outcome
// from the core; neither the engine nor the registry logs anything
// itself, and session tokens never reach this package.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Level классифицирует запись в журнале
type Level string

const (
	LevelLogin   Level = "LOGIN"
	LevelCommand Level = "COMMAND"
	LevelAdmin   Level = "ADMIN"
	LevelError   Level = "ERROR"
)

const (
	header     = "=== System Logs ==="
	timeLayout = "2006-01-02 15:04:05"
	filePerm   = 0o600
)

// Trail пишет журнал в текстовый файл формата
//
//	[2006-01-02 15:04:05] [LEVEL] [username] message
//
// и умеет экспортировать его в CSV
type Trail struct {
	mu      sync.Mutex
	logPath string
	csvPath string
	now     func() time.Time
}

// New creates an audit trail backed by logPath
// The file is created with a header line if it does not exist yet;
// csvPath is where ExportCSV writes its output
func New(logPath, csvPath string) (*Trail, error) {
	t := &Trail{
		logPath: logPath,
		csvPath: csvPath,
		now:     time.Now,
	}

	if _, err := os.Stat(logPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat log file: %w", err)
		}
		if err := os.WriteFile(logPath, []byte(header+"\n"), filePerm); err != nil {
			return nil, fmt.Errorf("failed to initialize log file: %w", err)
		}
	}

	return t, nil
}

// LoginAttempt records the outcome of a login attempt
func (t *Trail) LoginAttempt(username string, success bool) error {
	return t.write(LevelLogin, username,
		fmt.Sprintf("Login attempt %s for user: %s", statusWord(success), username))
}

// Command records a command execution and its outcome
func (t *Trail) Command(username, command string, success bool) error {
	return t.write(LevelCommand, username,
		fmt.Sprintf("Command '%s' executed - %s", command, statusWord(success)))
}

// AdminAction records a privileged action; target may be empty
func (t *Trail) AdminAction(actor, action, target string) error {
	msg := "Admin action: " + action
	if target != "" {
		msg += " on " + target
	}
	return t.write(LevelAdmin, actor, msg)
}

// Error records an operational error; username may be empty
func (t *Trail) Error(username, msg string) error {
	return t.write(LevelError, username, msg)
}

func statusWord(success bool) string {
	if success {
		return "SUCCESS"
	}
	return "FAILED"
}

// write сериализует запись и дописывает ее в конец файла
func (t *Trail) write(level Level, username, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := fmt.Sprintf("[%s] [%s]", t.now().Format(timeLayout), level)
	if username != "" {
		entry += fmt.Sprintf(" [%s]", username)
	}
	entry += " " + message + "\n"

	f, err := os.OpenFile(t.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}

	return nil
}

// View returns the last n lines of the log, or the whole log for n <= 0
func (t *Trail) View(lines int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.logPath)
	if err != nil {
		return "", fmt.Errorf("failed to read log file: %w", err)
	}

	if lines <= 0 {
		return string(data), nil
	}

	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if lines < len(all) {
		all = all[len(all)-lines:]
	}
	return strings.Join(all, "\n") + "\n", nil
}

// ExportCSV parses the log into Timestamp,Level,Username,Message rows
// and writes them to the configured CSV path, returning that path
func (t *Trail) ExportCSV() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.logPath)
	if err != nil {
		return "", fmt.Errorf("failed to read log file: %w", err)
	}

	records := [][]string{{"Timestamp", "Level", "Username", "Message"}}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "===") {
			continue
		}
		if entry, ok := parseLine(line); ok {
			records = append(records, entry)
		}
	}

	f, err := os.OpenFile(t.csvPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return "", fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("failed to write csv: %w", err)
	}

	return t.csvPath, nil
}

// parseLine разбирает строку вида
//
//	[timestamp] [LEVEL] [username] message
//
// username опционален; строки другого формата пропускаются
func parseLine(line string) ([]string, bool) {
	if !strings.HasPrefix(line, "[") {
		return nil, false
	}

	timestamp, rest, ok := bracketed(line)
	if !ok {
		return nil, false
	}

	level, rest, ok := bracketed(rest)
	if !ok {
		return nil, false
	}

	username := ""
	message := rest
	if strings.HasPrefix(rest, "[") {
		if u, m, ok := bracketed(rest); ok {
			username = u
			message = m
		}
	}

	return []string{timestamp, level, username, message}, true
}

// bracketed извлекает ведущий [token] и возвращает остаток строки
func bracketed(s string) (token, rest string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return "", "", false
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return "", "", false
	}
	return s[1:end], strings.TrimSpace(s[end+1:]), true
}
