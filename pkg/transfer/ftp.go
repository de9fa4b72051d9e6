package transfer

import (
	"context"
	"crypto/tls"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/laforge-app/laforge/pkg/errors"
)

const ftpDialTimeout = 10 * time.Second

type ftpClient struct {
	conn *ftp.ServerConn
}

func dialFTP(ctx context.Context, cfg Config) (client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(ftpDialTimeout),
	}
	if cfg.Protocol == ProtocolFTPS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: cfg.Host,
		}))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, errors.WithContext(err, "connection failed")
	}

	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		conn.Quit()
		return nil, errors.WithContext(err, "login failed")
	}

	return &ftpClient{conn: conn}, nil
}

func (c *ftpClient) list(root string) (map[string]int64, error) {
	files := map[string]int64{}
	if err := c.listDir(root, "", files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *ftpClient) listDir(root, rel string, files map[string]int64) error {
	dir := root
	if rel != "" {
		dir = path.Join(root, rel)
	}

	entries, err := c.conn.List(dir)
	if err != nil {
		return errors.WithContext(err, "read remote directory")
	}

	for _, entry := range entries {
		name := entry.Name
		if name == "." || name == ".." || strings.HasPrefix(name, ".") {
			continue
		}

		entryRel := name
		if rel != "" {
			entryRel = rel + "/" + name
		}

		switch entry.Type {
		case ftp.EntryTypeFolder:
			if err := c.listDir(root, entryRel, files); err != nil {
				return err
			}
		case ftp.EntryTypeFile:
			files[entryRel] = int64(entry.Size)
		}
	}
	return nil
}

func (c *ftpClient) upload(localPath, remotePath string) error {
	// MakeDir fails when the directory already exists, so errors are
	// ignored; a genuinely missing directory surfaces in Stor below.
	dir := path.Dir(remotePath)
	if dir != "." && dir != "/" {
		parts := strings.Split(strings.TrimPrefix(dir, "/"), "/")
		current := ""
		for _, part := range parts {
			current = current + "/" + part
			_ = c.conn.MakeDir(current)
		}
	}

	src, err := fs.Open(localPath)
	if err != nil {
		return errors.WithContext(err, "open local file")
	}
	defer src.Close()

	if err := c.conn.Stor(remotePath, src); err != nil {
		return errors.WithContext(err, "upload file")
	}
	return nil
}

func (c *ftpClient) close() error {
	return c.conn.Quit()
}
