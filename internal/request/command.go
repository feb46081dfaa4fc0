package request

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fetchPattern  = regexp.MustCompile(`(?i)^#?[_\s]?jm\s+(\d+)(?:\s+(\d+)-(\d+))?$`)
	looseJMPrefix = regexp.MustCompile(`(?i)^#?[_\s]?jm(\s|$)`)
	helpPattern   = regexp.MustCompile(`(?i)^#?(jm\s*)?(帮助|help)$`)
)

// CommandKind identifies what an inbound chat message asks for.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandFetch
	CommandUsage
	CommandHelp
)

func (k CommandKind) String() string {
	switch k {
	case CommandFetch:
		return "fetch"
	case CommandUsage:
		return "usage"
	case CommandHelp:
		return "help"
	default:
		return "none"
	}
}

// Command is the parsed form of one chat message.
type Command struct {
	Kind    CommandKind
	AlbumID string
	Bounds  *Bounds
}

// ParseCommand recognises "jm <album> [start-end]" and help requests. Text
// that starts like a jm command but does not match the grammar yields
// CommandUsage; unrelated text yields CommandNone.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{}
	}
	if helpPattern.MatchString(text) {
		return Command{Kind: CommandHelp}
	}
	match := fetchPattern.FindStringSubmatch(text)
	if match == nil {
		if looseJMPrefix.MatchString(text) {
			return Command{Kind: CommandUsage}
		}
		return Command{}
	}
	cmd := Command{Kind: CommandFetch, AlbumID: match[1]}
	if match[2] != "" && match[3] != "" {
		start, errStart := strconv.Atoi(match[2])
		end, errEnd := strconv.Atoi(match[3])
		if errStart != nil || errEnd != nil {
			return Command{Kind: CommandUsage}
		}
		cmd.Bounds = &Bounds{Start: start, End: end}
	}
	return cmd
}

// ParseBounds parses a "start-end" range argument.
func ParseBounds(value string) (*Bounds, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	startText, endText, ok := strings.Cut(value, "-")
	if !ok {
		return nil, &Error{Kind: KindInvalidRange, Message: "range must look like start-end"}
	}
	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRange, Message: "range start is not a number"}
	}
	end, err := strconv.Atoi(strings.TrimSpace(endText))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRange, Message: "range end is not a number"}
	}
	return &Bounds{Start: start, End: end}, nil
}

// UsageText is sent when a jm command is malformed.
const UsageText = `Please provide a valid album id
Usage:
  #jm 422866        (chapters 1-5)
  #jm 422866 1-3    (chapters 1-3)
  #jm 422866 5-10   (chapters 5-10)
  ⚠️ At most 6 chapters per request`

// HelpText answers #help.
const HelpText = `📚 Comic PDF
• #jm <album id> - convert chapters 1-5 to PDF
• #jm <album id> <start>-<end> - convert a chapter range (at most 6)

Files are sent one by one after a summary and are removed from the server shortly after.`
