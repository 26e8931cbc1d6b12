package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/protocol/framing"
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid server settings")

// DefaultMarker is the start-of-packet marker ("VD").
var DefaultMarker = []byte{0x56, 0x44}

// Settings configures a Server.
//
// Zero values are not replaced; start from DefaultSettings and override
// what you need.
type Settings struct {
	// IP is the address to listen on. IPv4 or IPv6.
	IP string `validate:"required,ip"`

	// Port is the TCP port. 0 lets the OS pick one (see Server.Addr).
	Port int `validate:"min=0,max=65535"`

	// Backlog is kept for configuration compatibility. The Go runtime
	// uses the system listen backlog.
	Backlog int `validate:"min=0"`

	// BufferSize is the per-client read buffer size in bytes.
	BufferSize int `validate:"min=1"`

	// MaxConnections caps concurrent connections. 0 means unlimited.
	MaxConnections int `validate:"min=0"`

	// MaxDepth is the number of packets allowed after the first one in a
	// single received chunk.
	MaxDepth int `validate:"min=0"`

	// MaxPacketSize is the largest accepted payload length.
	MaxPacketSize int `validate:"min=1"`

	// Marker starts every frame on the wire.
	Marker []byte `validate:"required,min=1"`

	// IDDecoder reads the command id at the start of every packet.
	IDDecoder command.IDDecoder `validate:"-"`

	// SendQueueSize bounds the per-client outbound queue.
	SendQueueSize int `validate:"min=1"`

	// ReadTimeout closes a client that sends nothing for that long. 0 disables it.
	ReadTimeout time.Duration `validate:"min=0"`

	// WriteTimeout bounds each socket write. 0 disables it.
	WriteTimeout time.Duration `validate:"min=0"`

	// ShutdownTimeout bounds how long Stop waits for connection goroutines.
	ShutdownTimeout time.Duration `validate:"required,gt=0"`

	// HideSocketErrors logs transient socket failures at LevelLow.
	HideSocketErrors bool

	// ReportSendErrors makes SendToClient return enqueue failures.
	ReportSendErrors bool

	Logger logger.Logger `validate:"-"`

	// ClientFactory builds clients for accepted connections. Nil wraps each
	// connection with a queue of SendQueueSize.
	ClientFactory client.Factory `validate:"-"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		IP:               "127.0.0.1",
		Port:             8888,
		Backlog:          10,
		BufferSize:       1024,
		MaxConnections:   100,
		MaxDepth:         64,
		MaxPacketSize:    framing.DefaultMaxPacketSize,
		Marker:           append([]byte(nil), DefaultMarker...),
		IDDecoder:        command.LittleEndianID,
		SendQueueSize:    client.DefaultQueueSize,
		WriteTimeout:     10 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		HideSocketErrors: true,
		Logger:           logger.Default(),
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks s and returns an error wrapping ErrInvalidSettings.
func (s Settings) Validate() error {
	if err := getValidator().Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, formatValidationError(err))
	}

	if net.ParseIP(s.IP) == nil {
		return fmt.Errorf("%w: IP %q is not a valid address", ErrInvalidSettings, s.IP)
	}
	if s.IDDecoder == nil {
		return fmt.Errorf("%w: IDDecoder is nil", ErrInvalidSettings)
	}
	if s.Logger == nil {
		return fmt.Errorf("%w: Logger is nil", ErrInvalidSettings)
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: validation failed on '%s' tag (value: %v)",
			e.Field(), e.Tag(), e.Value()))
	}
	return strings.Join(msgs, "; ")
}
