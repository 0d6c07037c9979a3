package octoserve

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const (
	CommandStop         = "stop"
	CommandConfigReload = "config-reload"
	CommandStatus       = "status"
)

// Controller reads operator commands, one per line, and acts on the server.
type Controller struct {
	server *Server
	out    io.Writer
}

// NewController returns a controller for server that prints command output to
// out.
func NewController(server *Server, out io.Writer) *Controller {
	return &Controller{server: server, out: out}
}

// Run handles commands from r until "stop" is received, r is exhausted or ctx
// is done. It reports whether the server was stopped.
func (c *Controller) Run(ctx context.Context, r io.Reader) (bool, error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return false, nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return false, errors.Wrap(err, "read command")
					}
				default:
				}
				return false, nil
			}
			stopped, err := c.Execute(strings.TrimSpace(line))
			if err != nil {
				logger.Error().Err(err).Str("command", line).Msg("[octoserve] command failed")
			}
			if stopped {
				return true, nil
			}
		}
	}
}

// Execute runs a single command and reports whether it stopped the server.
func (c *Controller) Execute(command string) (bool, error) {
	switch command {
	case "":
		return false, nil
	case CommandStop:
		logger.Info().Msg("[octoserve] Stopping the web server...")
		if err := c.server.Close(); err != nil {
			return true, err
		}
		return true, nil
	case CommandConfigReload:
		// The running configuration is kept; only the notice is printed.
		logger.Info().Msg("[octoserve] Reloading the config...")
		logger.Warn().Msg("[octoserve] Only changeable values will change, such as the location of the website. " +
			"Static values will not, like the ip and port. To change those settings, restart the server.")
		return false, nil
	case CommandStatus:
		data, err := sonic.Marshal(c.server.Stats())
		if err != nil {
			return false, errors.Wrap(err, "encode status")
		}
		data = append(data, '\n')
		if _, err := c.out.Write(data); err != nil {
			return false, errors.Wrap(err, "write status")
		}
		return false, nil
	default:
		logger.Debug().Str("command", command).Msg("[octoserve] unknown command")
		return false, nil
	}
}
