package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// action is a keyboard command typed into a live console.
type action string

const (
	actStart   action = "start"
	actPause   action = "pause"
	actToggle  action = "toggle"
	actNext    action = "next"
	actPrev    action = "prev"
	actRestart action = "restart"
	actAdd     action = "add"
	actRemove  action = "remove"
	actMove    action = "move"
	actInsert  action = "insert"
	actDup     action = "duplicate"
	actSet     action = "set"
	actHeader  action = "header"
	actNew     action = "new"
	actList    action = "list"
	actShare   action = "share"
	actHelp    action = "help"
	actQuit    action = "quit"
)

// liveCommand is a parsed console line. Indexes are zero-based.
type liveCommand struct {
	Action  action
	Minutes int
	Title   string
	From    int
	To      int
	Field   string // slot or program field for set and header edits
	Value   string
}

// Mutates reports whether the command changes program content or the timer.
func (c liveCommand) Mutates() bool {
	switch c.Action {
	case actList, actShare, actHelp, actQuit:
		return false
	}
	return true
}

var aliases = map[string]action{
	"s": actStart, "start": actStart,
	"p": actPause, "pause": actPause,
	"t": actToggle, "toggle": actToggle,
	"n": actNext, "next": actNext,
	"b": actPrev, "prev": actPrev, "back": actPrev,
	"r": actRestart, "restart": actRestart,
	"a": actAdd, "add": actAdd,
	"rm": actRemove, "remove": actRemove,
	"mv": actMove, "move": actMove,
	"ins": actInsert, "insert": actInsert,
	"dup": actDup, "duplicate": actDup,
	"set": actSet,
	"prog": actHeader, "program": actHeader,
	"new": actNew,
	"l": actList, "ls": actList, "list": actList,
	"share": actShare,
	"h": actHelp, "?": actHelp, "help": actHelp,
	"q": actQuit, "quit": actQuit, "exit": actQuit,
}

const liveHelp = `commands:
  s start      p pause       t toggle      n next       b prev       r restart
  add <minutes> <title>      ins <n> <minutes> <title>  dup <n>
  rm <n>       mv <from> <to>
  set <n> title|speaker|mins|type|details <value>
  prog title|subtitle|date|start|end <value>          new [YYYY-MM-DD]
  l list       share         h help        q quit`

// slotFields maps accepted set field names to the slot field they edit.
var slotFields = map[string]string{
	"title":    "title",
	"speaker":  "speaker",
	"mins":     "duration",
	"minutes":  "duration",
	"duration": "duration",
	"type":     "type",
	"details":  "details",
}

var programFields = map[string]bool{
	"title": true, "subtitle": true, "date": true, "start": true, "end": true,
}

// parseCommand reads one console line. Slot numbers are entered one-based.
func parseCommand(line string) (liveCommand, error) {
	if line == " " {
		return liveCommand{Action: actToggle}, nil
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return liveCommand{}, fmt.Errorf("empty command")
	}
	act, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return liveCommand{}, fmt.Errorf("unknown command %q", fields[0])
	}
	cmd := liveCommand{Action: act}
	args := fields[1:]

	switch act {
	case actAdd:
		if len(args) < 2 {
			return cmd, fmt.Errorf("usage: add <minutes> <title>")
		}
		m, err := strconv.Atoi(args[0])
		if err != nil || m <= 0 {
			return cmd, fmt.Errorf("invalid minutes %q", args[0])
		}
		cmd.Minutes = m
		cmd.Title = strings.Join(args[1:], " ")
	case actRemove:
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: rm <n>")
		}
		n, err := slotNumber(args[0])
		if err != nil {
			return cmd, err
		}
		cmd.From = n
	case actMove:
		if len(args) != 2 {
			return cmd, fmt.Errorf("usage: mv <from> <to>")
		}
		from, err := slotNumber(args[0])
		if err != nil {
			return cmd, err
		}
		to, err := slotNumber(args[1])
		if err != nil {
			return cmd, err
		}
		cmd.From, cmd.To = from, to
	case actInsert:
		if len(args) < 3 {
			return cmd, fmt.Errorf("usage: ins <n> <minutes> <title>")
		}
		n, err := slotNumber(args[0])
		if err != nil {
			return cmd, err
		}
		m, err := strconv.Atoi(args[1])
		if err != nil || m <= 0 {
			return cmd, fmt.Errorf("invalid minutes %q", args[1])
		}
		cmd.From, cmd.Minutes = n, m
		cmd.Title = strings.Join(args[2:], " ")
	case actDup:
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: dup <n>")
		}
		n, err := slotNumber(args[0])
		if err != nil {
			return cmd, err
		}
		cmd.From = n
	case actSet:
		if len(args) < 2 {
			return cmd, fmt.Errorf("usage: set <n> <field> <value>")
		}
		n, err := slotNumber(args[0])
		if err != nil {
			return cmd, err
		}
		field, ok := slotFields[strings.ToLower(args[1])]
		if !ok {
			return cmd, fmt.Errorf("unknown slot field %q", args[1])
		}
		value := strings.Join(args[2:], " ")
		if err := checkSlotValue(field, value); err != nil {
			return cmd, err
		}
		cmd.From, cmd.Field, cmd.Value = n, field, value
	case actHeader:
		if len(args) < 1 {
			return cmd, fmt.Errorf("usage: prog <field> <value>")
		}
		field := strings.ToLower(args[0])
		if !programFields[field] {
			return cmd, fmt.Errorf("unknown program field %q", args[0])
		}
		value, err := programValue(field, strings.Join(args[1:], " "))
		if err != nil {
			return cmd, err
		}
		cmd.Field, cmd.Value = field, value
	case actNew:
		if len(args) > 1 {
			return cmd, fmt.Errorf("usage: new [YYYY-MM-DD]")
		}
		if len(args) == 1 {
			if _, err := time.Parse(models.DateLayout, args[0]); err != nil {
				return cmd, fmt.Errorf("invalid date %q", args[0])
			}
			cmd.Value = args[0]
		}
	}
	return cmd, nil
}

// checkSlotValue rejects values a slot field cannot hold. Details may be cleared.
func checkSlotValue(field, value string) error {
	switch field {
	case "details":
		return nil
	case "duration":
		m, err := strconv.Atoi(value)
		if err != nil || m <= 0 {
			return fmt.Errorf("invalid minutes %q", value)
		}
		return nil
	}
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	return nil
}

// programValue validates and normalises a header value. Subtitle and end may be cleared.
func programValue(field, value string) (string, error) {
	switch field {
	case "title":
		if value == "" {
			return "", fmt.Errorf("title cannot be empty")
		}
	case "date":
		if _, err := time.Parse(models.DateLayout, value); err != nil {
			return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
		}
	case "start", "end":
		if value == "" && field == "end" {
			return "", nil
		}
		m, err := clock.ParseTimeOfDay(value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%02d:%02d", m/60, m%60), nil
	}
	return value, nil
}

func slotNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid slot number %q", s)
	}
	return n - 1, nil
}
