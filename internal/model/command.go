package model

import "github.com/google/uuid"

// CommandKind is the control instruction carried by a Command.
type CommandKind uint8

const (
	_command_beg CommandKind = iota
	CommandStart
	CommandSubscribe
	CommandUnsubscribe
	CommandStop
	_command_end
)

func (k CommandKind) IsAvailable() bool {
	return k > _command_beg && k < _command_end
}

func (k CommandKind) String() string {
	switch k {
	case CommandStart:
		return "start"
	case CommandSubscribe:
		return "subscribe"
	case CommandUnsubscribe:
		return "unsubscribe"
	case CommandStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Command is a control instruction from the control surface to the relay.
type Command struct {
	ID           uuid.UUID
	Kind         CommandKind
	Subscription Subscription
}

func NewStartCommand() Command {
	return Command{ID: uuid.New(), Kind: CommandStart}
}

func NewStopCommand() Command {
	return Command{ID: uuid.New(), Kind: CommandStop}
}

func NewSubscribeCommand(sub Subscription) Command {
	return Command{ID: uuid.New(), Kind: CommandSubscribe, Subscription: sub}
}

func NewUnsubscribeCommand(sub Subscription) Command {
	return Command{ID: uuid.New(), Kind: CommandUnsubscribe, Subscription: sub}
}

// Action returns the wire action for subscribe and unsubscribe commands.
// Start and Stop have no wire form.
func (c Command) Action() (Action, bool) {
	switch c.Kind {
	case CommandSubscribe:
		return SubscribeAction(c.Subscription), true
	case CommandUnsubscribe:
		return UnsubscribeAction(c.Subscription), true
	default:
		return Action{}, false
	}
}
