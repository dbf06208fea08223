package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
)

// commandKind enumerates the slash commands of spec §6.
type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdUnproto
	cmdUnprotoExit
	cmdRetries
	cmdEcho
	cmdCRLF
	cmdDebug
	cmdStatus
	cmdClear
	cmdHelp
	cmdQuit
	cmdUnknown
)

// command is a parsed slash-command line.
type command struct {
	kind commandKind
	dest ax25.Callsign
	via  []ax25.Digipeater
	msg  string
	n    int
	on   bool
	raw  string
}

// parseCommand recognizes the leading-'/' vocabulary of spec §6. The
// text after the verb is whitespace-split except for /unproto, whose
// optional trailing message may itself contain spaces.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command")
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "/connect", "/c":
		if len(args) == 0 {
			return command{}, fmt.Errorf("usage: /connect CALLSIGN [via D1,D2,...]")
		}
		call, err := ax25.ParseCallsign(args[0])
		if err != nil {
			return command{}, err
		}
		via, err := parseVia(args[1:])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdConnect, dest: call, via: via}, nil

	case "/disconnect", "/d":
		return command{kind: cmdDisconnect}, nil

	case "/unproto", "/u":
		return parseUnproto(args)

	case "/upexit", "/ex":
		return command{kind: cmdUnprotoExit}, nil

	case "/retries":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: /retries N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return command{}, fmt.Errorf("retries must be a number: %w", err)
		}
		return command{kind: cmdRetries, n: n}, nil

	case "/echo":
		on, err := parseOnOff(args)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdEcho, on: on}, nil

	case "/crlf":
		on, err := parseOnOff(args)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdCRLF, on: on}, nil

	case "/debug":
		return command{kind: cmdDebug}, nil

	case "/status":
		return command{kind: cmdStatus}, nil

	case "/clear":
		return command{kind: cmdClear}, nil

	case "/help", "/?":
		return command{kind: cmdHelp}, nil

	case "/quit", "/q":
		return command{kind: cmdQuit}, nil

	default:
		return command{kind: cmdUnknown, raw: line}, nil
	}
}

// parseUnproto handles "/unproto DEST [via D1,D2,...] [message...]". A
// trailing message sends a single UI frame without touching persistent
// UNPROTO state; bare "/unproto DEST [via ...]" enters persistent mode
// (subsequent plain lines become UI frames until /upexit), per spec §6.
func parseUnproto(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf("usage: /unproto DEST [via D1,D2,...] [message]")
	}
	call, err := ax25.ParseCallsign(args[0])
	if err != nil {
		return command{}, err
	}
	rest := args[1:]
	var via []ax25.Digipeater
	if len(rest) > 0 && strings.EqualFold(rest[0], "via") {
		if len(rest) < 2 {
			return command{}, fmt.Errorf("usage: /unproto DEST via D1,D2,...")
		}
		via, err = parseVia(rest[0:2])
		if err != nil {
			return command{}, err
		}
		rest = rest[2:]
	}
	msg := strings.TrimSpace(strings.Join(rest, " "))
	return command{kind: cmdUnproto, dest: call, via: via, msg: msg}, nil
}

func parseVia(args []string) ([]ax25.Digipeater, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if !strings.EqualFold(args[0], "via") {
		return nil, nil
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: via D1,D2,...")
	}
	parts := strings.Split(args[1], ",")
	out := make([]ax25.Digipeater, 0, len(parts))
	for _, p := range parts {
		c, err := ax25.ParseCallsign(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, ax25.Digipeater{Call: c})
	}
	return out, nil
}

func parseOnOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("usage: on|off")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on|off, got %q", args[0])
	}
}
