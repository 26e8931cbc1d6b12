// Package command maps numeric packet ids to handlers and pools handler
// instances so dispatch does not allocate per packet.
package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/manager"
)

// IDSize is the width of the id field at the start of every packet.
const IDSize = 2

var (
	ErrCommandNotFound = errors.New("command not found")
	ErrDuplicateID     = errors.New("command id already registered")
	ErrDuplicateType   = errors.New("command type already registered")
	ErrShortPacket     = errors.New("packet shorter than command id")
	ErrWrongType       = errors.New("command instance has the wrong type")
	ErrAlreadyPooled   = errors.New("command instance already idle in pool")
)

// Command handles one packet. Instances are pooled and reused: an
// implementation must reset any per-call state at the start of Execute.
//
// packet is the full reassembled payload, id field included. managers gives
// access to the other managers registered on the server (for example the
// sender manager to reply).
type Command interface {
	Execute(sender *client.Client, managers *manager.Registry, packet []byte)
}

// IDDecoder reads the command id from the start of a packet.
type IDDecoder func(packet []byte) (uint16, error)

// IDEncoder writes a command id in the byte order matching an IDDecoder.
type IDEncoder func(dst []byte, id uint16) []byte

func BigEndianID(packet []byte) (uint16, error) {
	if len(packet) < IDSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(packet))
	}
	return binary.BigEndian.Uint16(packet), nil
}

func LittleEndianID(packet []byte) (uint16, error) {
	if len(packet) < IDSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(packet))
	}
	return binary.LittleEndian.Uint16(packet), nil
}

// ByteOrder resolves "big" or "little" to a decoder/encoder pair.
func ByteOrder(name string) (IDDecoder, IDEncoder, error) {
	switch strings.ToLower(name) {
	case "big", "big-endian", "bigendian":
		return BigEndianID, binary.BigEndian.AppendUint16, nil
	case "", "little", "little-endian", "littleendian":
		return LittleEndianID, binary.LittleEndian.AppendUint16, nil
	default:
		return nil, nil, fmt.Errorf("unknown id byte order %q", name)
	}
}

// DecoderFor returns the id decoder for "big" or "little".
func DecoderFor(name string) (IDDecoder, error) {
	dec, _, err := ByteOrder(name)
	return dec, err
}
