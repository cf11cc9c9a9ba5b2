package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/pkg/paths"
	"github.com/sirupsen/logrus"
)

// SocketPath returns the daemon socket configured in cfg, or the default one.
func SocketPath(cfg *config.Config) string {
	if cfg != nil && cfg.Daemon.Socket != "" {
		return cfg.Daemon.Socket
	}
	return paths.SocketPath()
}

// New returns a Client that will use the daemon if available,
// otherwise falls back to LocalClient.
//
// Callers don't need to know whether the daemon is running or not. The same
// API works in both modes.
func New(cfg *config.Config, logger *logrus.Entry) (Client, error) {
	socketPath := SocketPath(cfg)
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return NewRemoteClient(socketPath), nil
		}
	}

	return NewLocalClient(cfg, logger)
}
