// Package sample holds the demo command registered by cmd/validay.
package sample

import (
	"unicode/utf8"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	"github.com/marmos91/validay/pkg/managers/sender"
)

// SimpleMessageID is the command id of SimpleMessageCommand.
const SimpleMessageID uint16 = 1

// SimpleMessageCommand logs the UTF-8 text following the id and echoes it
// back to the sender as a framed SimpleMessageID packet.
type SimpleMessageCommand struct{}

func NewSimpleMessageCommand() *SimpleMessageCommand {
	return &SimpleMessageCommand{}
}

func (c *SimpleMessageCommand) Execute(from *client.Client, managers *manager.Registry, packet []byte) {
	if len(packet) < command.IDSize {
		return
	}
	body := packet[command.IDSize:]

	if !utf8.Valid(body) {
		logger.Warn("Message from %v is not valid UTF-8 (%d bytes)", from, len(body))
		return
	}
	logger.Info("Message from %v: %s", from, body)

	out, ok := manager.Find[*sender.Manager](managers)
	if !ok {
		return
	}
	echo := append([]byte(nil), body...)
	if err := out.SendFramed(from, SimpleMessageID, echo); err != nil {
		logger.Debug("Cannot echo to %v: %v", from, err)
	}
}
