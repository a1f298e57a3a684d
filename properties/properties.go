// Package properties is the client for the init property service: a
// system-wide key/value store reachable over a local unix socket. When
// the service is down, reads fall back to the static sources (build
// properties file, then kernel command line) before the caller's
// default. Writes and listings have no fallback.
package properties

import (
	"errors"
	"fmt"

	"github.com/danmuck/propctl/internal/config"
	"github.com/danmuck/propctl/internal/protocol"
	"github.com/danmuck/propctl/internal/staticsource"
	"github.com/danmuck/propctl/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidKey   = errors.New("properties: key exceeds name limit")
	ErrInvalidValue = errors.New("properties: value exceeds value limit")
)

// Client performs property operations against one service endpoint.
// Every call opens its own connection and owns its own buffers, so a
// Client is safe for concurrent use.
type Client struct {
	cfg config.Config
	log zerolog.Logger
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		log: log.With().Str("component", "properties").Logger(),
	}
}

// Get resolves key through the live service, then the static sources,
// then def. The only possible error is ErrInvalidKey; every miss still
// yields a value, and an empty value is indistinguishable from "not
// found" at this layer. A reachable service answering with an empty
// value also yields def: the property exists nowhere but the service
// is fine, which is not a transport failure.
func (c *Client) Get(key, def string) (string, error) {
	if key == "" {
		return def, nil
	}
	if len(key) >= protocol.NameMax {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	value, err := c.getSocket(key)
	if err == nil {
		if value == "" && def != "" {
			return def, nil
		}
		return value, nil
	}
	c.log.Debug().Str("key", key).Err(err).Msg("service miss, trying static sources")

	if v, ok := staticsource.Resolve(c.cfg, key); ok {
		return v, nil
	}
	return def, nil
}

// getSocket performs one GETPROP exchange and returns the value the
// service echoed back.
func (c *Client) getSocket(key string) (string, error) {
	s, err := transport.Dial(c.cfg.SocketPath)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var value string
	req := protocol.Message{Cmd: protocol.CmdGet, Name: key}
	if _, err := s.Exchange(req, func(_, v string) { value = v }); err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value under key. An empty value is legal. There is no
// fallback path: the static sources are read-only, so any transport
// failure is surfaced.
func (c *Client) Set(key, value string) error {
	if len(key) >= protocol.NameMax {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(value) >= protocol.ValueMax {
		return fmt.Errorf("%w: %d bytes", ErrInvalidValue, len(value))
	}

	s, err := transport.Dial(c.cfg.SocketPath)
	if err != nil {
		return err
	}
	defer s.Close()

	req := protocol.Message{Cmd: protocol.CmdSet, Name: key, Value: value}
	_, err = s.Exchange(req, nil)
	return err
}

// List streams every property the service reports to fn, in service
// order, with no sorting or deduplication. Entries delivered before a
// mid-stream failure stay delivered.
func (c *Client) List(fn func(key, value string)) error {
	s, err := transport.Dial(c.cfg.SocketPath)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.Exchange(protocol.Message{Cmd: protocol.CmdList}, fn)
	return err
}

var defaultClient = NewClient(config.Default())

// Get resolves key against the stock service endpoints.
func Get(key, def string) (string, error) {
	return defaultClient.Get(key, def)
}

// Set stores value against the stock service endpoints.
func Set(key, value string) error {
	return defaultClient.Set(key, value)
}

// List streams the stock service's properties to fn.
func List(fn func(key, value string)) error {
	return defaultClient.List(fn)
}
