package tui

import (
	"strconv"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/usecase"
)

type commandKind int

const (
	cmdAsk commandKind = iota
	cmdNew
	cmdSwitch
	cmdClear
	cmdDelete
	cmdContext
	cmdHelp
	cmdQuit
	cmdUnknown
)

type command struct {
	kind   commandKind
	index  int
	text   string
	reason string
}

const helpText = "/new  /switch N  /clear  /delete  /context  /quit  (exit clears the thread)"

// parseCommand maps one submitted line onto a session action. Anything that is not a slash
// command or the exit keyword is a question.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if usecase.IsExitCommand(line) {
		return command{kind: cmdClear}
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdAsk, text: line}
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/new":
		return command{kind: cmdNew}
	case "/switch":
		if len(fields) != 2 {
			return command{kind: cmdUnknown, reason: "usage: /switch N"}
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return command{kind: cmdUnknown, reason: "thread number must be a positive integer"}
		}
		return command{kind: cmdSwitch, index: n}
	case "/clear":
		return command{kind: cmdClear}
	case "/delete":
		return command{kind: cmdDelete}
	case "/context":
		return command{kind: cmdContext}
	case "/help":
		return command{kind: cmdHelp}
	case "/quit", "/q":
		return command{kind: cmdQuit}
	default:
		return command{kind: cmdUnknown, reason: "unknown command " + fields[0]}
	}
}
