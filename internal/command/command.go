// Package command parses the plain-text control protocol.
//
// Input is bounded: anything longer than MaxLength, or with an out-of-range
// argument, parses as Malformed and is ignored by the caller.
package command

import (
	"strconv"
	"strings"
)

const (
	MaxLength      = 64
	MaxLabelLength = 15
	MaxTargetLen   = 7
)

// Kind identifies a command.
type Kind int

const (
	Unknown Kind = iota
	Malformed
	Mode
	Label
	Start
	Stop
	Reset
	Status
)

var kindNames = [...]string{"UNKNOWN", "MALFORMED", "MODE", "LABEL", "START", "STOP", "RESET", "STATUS"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// Command is a parsed control message.
type Command struct {
	Kind Kind
	// Arg is the mode name, label or target id.
	Arg        string
	DistanceMM int
	Raw        string
}

// Parse parses one command. It never fails; bad input yields Unknown or
// Malformed.
func Parse(in []byte) Command {
	if len(in) > MaxLength {
		return Command{Kind: Malformed}
	}
	s := strings.TrimRight(string(in), "\r\n\x00")
	c := Command{Raw: s}

	name, arg, hasArg := strings.Cut(s, ":")
	switch name {
	case "MODE":
		if !hasArg {
			c.Kind = Malformed
			return c
		}
		// Unknown names are resolved to IDLE by the state machine.
		c.Kind, c.Arg = Mode, arg
	case "LABEL":
		if !hasArg || len(arg) == 0 || len(arg) > MaxLabelLength {
			c.Kind = Malformed
			return c
		}
		c.Kind, c.Arg = Label, arg
	case "START":
		if !hasArg {
			c.Kind = Malformed
			return c
		}
		id, dist, hasDist := strings.Cut(arg, ":")
		if len(id) == 0 || len(id) > MaxTargetLen {
			c.Kind = Malformed
			return c
		}
		c.Kind, c.Arg = Start, id
		if hasDist {
			// A distance that does not parse is zero, as with no distance.
			if n, err := strconv.Atoi(dist); err == nil {
				c.DistanceMM = n
			}
		}
	case "STOP", "RESET", "STATUS":
		if hasArg {
			c.Kind = Unknown
			return c
		}
		switch name {
		case "STOP":
			c.Kind = Stop
		case "RESET":
			c.Kind = Reset
		default:
			c.Kind = Status
		}
	default:
		c.Kind = Unknown
	}
	return c
}

// Ignored reports whether the command has no effect.
func (c Command) Ignored() bool {
	return c.Kind == Unknown || c.Kind == Malformed
}
