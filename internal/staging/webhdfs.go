package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retail-pipeline/internal/config"
)

// WebHDFS is a Store speaking the HDFS REST API to a namenode. Writes follow the
// two-step CREATE protocol: the namenode redirects to a datanode which receives
// the bytes.
type WebHDFS struct {
	base   *url.URL
	user   string
	root   string
	client *http.Client
}

// NewWebHDFS creates a WebHDFS store rooted at cfg.Root.
func NewWebHDFS(cfg config.WebHDFSConfig) (*WebHDFS, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, eris.Wrapf(err, "staging: parse webhdfs url %q", cfg.URL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, eris.Errorf("staging: webhdfs url %q needs scheme and host", cfg.URL)
	}
	return &WebHDFS{
		base: base,
		user: cfg.User,
		root: "/" + strings.Trim(cfg.Root, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (w *WebHDFS) fsPath(key string) string {
	return path.Join(w.root, key)
}

func (w *WebHDFS) endpoint(key, op string, extra url.Values) string {
	u := *w.base
	u.Path = "/webhdfs/v1" + w.fsPath(key)
	q := url.Values{}
	q.Set("op", op)
	if w.user != "" {
		q.Set("user.name", w.user)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// remoteException is the error envelope returned by the namenode.
type remoteException struct {
	RemoteException struct {
		Exception string `json:"exception"`
		Message   string `json:"message"`
	} `json:"RemoteException"`
}

func (w *WebHDFS) do(ctx context.Context, method, target string, body io.Reader, size int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, eris.Wrap(err, "staging: webhdfs request")
	}
	if body != nil {
		req.ContentLength = size
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: webhdfs %s", method)
	}
	return resp, nil
}

// check turns a non-2xx response into an error and closes its body.
func check(resp *http.Response, op, key string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	var re remoteException
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &re) == nil && re.RemoteException.Exception != "" {
		msg = re.RemoteException.Exception + ": " + re.RemoteException.Message
	}
	if resp.StatusCode == http.StatusNotFound || re.RemoteException.Exception == "FileNotFoundException" {
		return eris.Wrapf(ErrNotFound, "staging: webhdfs %s %s", op, key)
	}
	return eris.Errorf("staging: webhdfs %s %s: status %d: %s", op, key, resp.StatusCode, msg)
}

func (w *WebHDFS) mkdirs(ctx context.Context, dir string) error {
	resp, err := w.do(ctx, http.MethodPut, w.endpoint(dir, "MKDIRS", nil), nil, 0)
	if err != nil {
		return err
	}
	if err := check(resp, "MKDIRS", dir); err != nil {
		return err
	}
	resp.Body.Close() //nolint:errcheck
	return nil
}

// Put uploads localPath to a hidden temp path and renames it to key.
func (w *WebHDFS) Put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return eris.Wrapf(err, "staging: open %s", localPath)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return eris.Wrapf(err, "staging: stat %s", localPath)
	}

	tmp := tempName(key)
	resp, err := w.do(ctx, http.MethodPut, w.endpoint(tmp, "CREATE", url.Values{"overwrite": {"true"}}), nil, 0)
	if err != nil {
		return err
	}
	target := resp.Header.Get("Location")
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusTemporaryRedirect || target == "" {
		return eris.Errorf("staging: webhdfs CREATE %s: expected redirect, got status %d", key, resp.StatusCode)
	}

	resp, err = w.do(ctx, http.MethodPut, target, f, info.Size())
	if err != nil {
		return err
	}
	if err := check(resp, "CREATE", key); err != nil {
		return err
	}
	resp.Body.Close() //nolint:errcheck

	return w.rename(ctx, tmp, key)
}

type fileStatuses struct {
	FileStatuses struct {
		FileStatus []struct {
			PathSuffix       string `json:"pathSuffix"`
			Type             string `json:"type"`
			Length           int64  `json:"length"`
			ModificationTime int64  `json:"modificationTime"`
		} `json:"FileStatus"`
	} `json:"FileStatuses"`
}

// List returns the files directly under prefix.
func (w *WebHDFS) List(ctx context.Context, prefix string) ([]Object, error) {
	dir := strings.Trim(prefix, "/")
	resp, err := w.do(ctx, http.MethodGet, w.endpoint(dir, "LISTSTATUS", nil), nil, 0)
	if err != nil {
		return nil, err
	}
	if err := check(resp, "LISTSTATUS", prefix); err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var st fileStatuses
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, eris.Wrapf(err, "staging: webhdfs decode listing of %s", prefix)
	}

	objs := make([]Object, 0, len(st.FileStatuses.FileStatus))
	for _, fs := range st.FileStatuses.FileStatus {
		if fs.Type != "FILE" || hidden(fs.PathSuffix) {
			continue
		}
		objs = append(objs, Object{
			Key:     Join(dir, fs.PathSuffix),
			Size:    fs.Length,
			ModTime: time.UnixMilli(fs.ModificationTime),
		})
	}
	sortObjects(objs)
	return objs, nil
}

// Open streams key, following the namenode's redirect to a datanode.
func (w *WebHDFS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := w.do(ctx, http.MethodGet, w.endpoint(key, "OPEN", nil), nil, 0)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTemporaryRedirect {
		target := resp.Header.Get("Location")
		resp.Body.Close() //nolint:errcheck
		if resp, err = w.do(ctx, http.MethodGet, target, nil, 0); err != nil {
			return nil, err
		}
	}
	if err := check(resp, "OPEN", key); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Move renames src to dst within the namespace.
func (w *WebHDFS) Move(ctx context.Context, src, dst string) error {
	if err := w.mkdirs(ctx, path.Dir(dst)); err != nil {
		return err
	}
	return w.rename(ctx, src, dst)
}

func (w *WebHDFS) rename(ctx context.Context, src, dst string) error {
	resp, err := w.do(ctx, http.MethodPut, w.endpoint(src, "RENAME", url.Values{"destination": {w.fsPath(dst)}}), nil, 0)
	if err != nil {
		return err
	}
	if err := check(resp, "RENAME", src); err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	var out struct {
		Boolean bool `json:"boolean"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return eris.Wrapf(err, "staging: webhdfs decode rename of %s", src)
	}
	if !out.Boolean {
		// HDFS answers false rather than 404 when the source is gone.
		return eris.Wrapf(ErrNotFound, "staging: webhdfs rename %s to %s", src, dst)
	}
	return nil
}

// String identifies the store in logs.
func (w *WebHDFS) String() string {
	return fmt.Sprintf("webhdfs(%s%s)", w.base.Host, w.root)
}
