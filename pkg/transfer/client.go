package transfer

import (
	"context"
	"fmt"

	"github.com/laforge-app/laforge/pkg/errors"
)

// client is a connected session to the remote host. Implementations are not
// safe for concurrent use; every upload worker dials its own.
type client interface {
	// list returns the size of every file under root, keyed by
	// slash-separated path relative to root. Hidden entries are skipped.
	list(root string) (map[string]int64, error)

	// upload copies the local file to the remote path, creating parent
	// directories as needed.
	upload(localPath, remotePath string) error

	close() error
}

// Mocked for unit testing.
var dial = dialImpl

func dialImpl(ctx context.Context, cfg Config) (client, error) {
	if cfg.Host == "" {
		return nil, errors.MissingFieldError{Field: "host"}
	}
	if cfg.Username == "" {
		return nil, errors.MissingFieldError{Field: "username"}
	}

	switch cfg.Protocol {
	case ProtocolSFTP:
		return dialSFTP(ctx, cfg)
	case ProtocolFTP, ProtocolFTPS, "":
		return dialFTP(ctx, cfg)
	default:
		return nil, errors.New(fmt.Sprintf("unknown protocol: %s", cfg.Protocol))
	}
}
