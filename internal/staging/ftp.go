package staging

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/config"
)

// FTP is a Store backed by an FTP server. Each operation uses its own control
// connection; uploads land under a hidden temp name and are renamed into place.
type FTP struct {
	addr     string
	user     string
	password string
	root     string
	timeout  time.Duration
}

// NewFTP creates an FTP store. The port defaults to 21.
func NewFTP(cfg config.FTPConfig) *FTP {
	addr := cfg.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	root := cfg.Root
	if root == "" {
		root = "/"
	}
	return &FTP{
		addr:     addr,
		user:     cfg.User,
		password: cfg.Password,
		root:     root,
		timeout:  timeout,
	}
}

func (f *FTP) path(key string) string {
	return path.Join(f.root, key)
}

func (f *FTP) dial(ctx context.Context) (*ftp.ServerConn, error) {
	zap.L().Debug("ftp: connecting", zap.String("addr", f.addr))

	conn, err := ftp.Dial(f.addr, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "staging: ftp dial")
	}
	if err := conn.Login(f.user, f.password); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "staging: ftp login")
	}
	return conn, nil
}

// mkdirAll creates every missing directory on the way to dir. Errors are
// ignored because most servers answer 550 for directories that already exist.
func mkdirAll(conn *ftp.ServerConn, dir string) {
	cur := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		conn.MakeDir(cur) //nolint:errcheck
	}
}

// Put stores localPath under a temp name, then renames it to key.
func (f *FTP) Put(ctx context.Context, key, localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return eris.Wrapf(err, "staging: open %s", localPath)
	}
	defer src.Close() //nolint:errcheck

	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit() //nolint:errcheck

	dst := f.path(key)
	tmp := f.path(tempName(key))
	mkdirAll(conn, path.Dir(dst))

	if err := conn.Stor(tmp, src); err != nil {
		conn.Delete(tmp) //nolint:errcheck
		return eris.Wrapf(err, "staging: ftp store %s", key)
	}
	if err := conn.Rename(tmp, dst); err != nil {
		conn.Delete(tmp) //nolint:errcheck
		return eris.Wrapf(err, "staging: ftp publish %s", key)
	}
	return nil
}

// List returns the regular files directly under prefix.
func (f *FTP) List(ctx context.Context, prefix string) ([]Object, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	dir := strings.Trim(prefix, "/")
	entries, err := conn.List(f.path(dir))
	if err != nil {
		if isFileUnavailable(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "staging: ftp list %s", prefix)
	}
	return ftpObjects(dir, entries), nil
}

func ftpObjects(dir string, entries []*ftp.Entry) []Object {
	objs := make([]Object, 0, len(entries))
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || hidden(e.Name) {
			continue
		}
		objs = append(objs, Object{
			Key:     Join(dir, e.Name),
			Size:    int64(e.Size),
			ModTime: e.Time,
		})
	}
	sortObjects(objs)
	return objs
}

// ftpReader closes the data response and the control connection together.
type ftpReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "staging: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "staging: quit ftp connection")
	}
	return nil
}

// Open retrieves key. The returned reader owns the connection.
func (f *FTP) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(f.path(key))
	if err != nil {
		conn.Quit() //nolint:errcheck
		if isFileUnavailable(err) {
			return nil, eris.Wrapf(ErrNotFound, "staging: ftp retrieve %s", key)
		}
		return nil, eris.Wrapf(err, "staging: ftp retrieve %s", key)
	}
	return &ftpReader{resp: resp, conn: conn}, nil
}

// Move renames src to dst with RNFR/RNTO.
func (f *FTP) Move(ctx context.Context, src, dst string) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit() //nolint:errcheck

	to := f.path(dst)
	mkdirAll(conn, path.Dir(to))
	if err := conn.Rename(f.path(src), to); err != nil {
		if isFileUnavailable(err) {
			return eris.Wrapf(ErrNotFound, "staging: ftp move %s", src)
		}
		return eris.Wrapf(err, "staging: ftp move %s to %s", src, dst)
	}
	return nil
}

func isFileUnavailable(err error) bool {
	var tp *textproto.Error
	return errors.As(err, &tp) && tp.Code == ftp.StatusFileUnavailable
}
