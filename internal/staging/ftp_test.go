package staging

import (
	"net/textproto"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/retail-pipeline/internal/config"
)

func TestNewFTP_Defaults(t *testing.T) {
	f := NewFTP(config.FTPConfig{Addr: "ftp.example.com"})
	assert.Equal(t, "ftp.example.com:21", f.addr)
	assert.Equal(t, 30*time.Second, f.timeout)
	assert.Equal(t, "/", f.root)

	f = NewFTP(config.FTPConfig{Addr: "ftp.example.com:2121", Root: "/pub", TimeoutSecs: 5})
	assert.Equal(t, "ftp.example.com:2121", f.addr)
	assert.Equal(t, 5*time.Second, f.timeout)
	assert.Equal(t, "/pub/input/a.csv", f.path("input/a.csv"))
}

func TestFTPObjects(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	objs := ftpObjects("input", []*ftp.Entry{
		{Name: "retail_batch_2.csv", Type: ftp.EntryTypeFile, Size: 20, Time: at},
		{Name: "retail_batch_1.csv", Type: ftp.EntryTypeFile, Size: 10, Time: at},
		{Name: ".retail_batch_3.csv._COPYING_", Type: ftp.EntryTypeFile},
		{Name: "archive", Type: ftp.EntryTypeFolder},
	})
	assert.Len(t, objs, 2)
	assert.Equal(t, "input/retail_batch_1.csv", objs[0].Key)
	assert.Equal(t, int64(10), objs[0].Size)
	assert.Equal(t, at, objs[1].ModTime)
}

func TestIsFileUnavailable(t *testing.T) {
	assert.True(t, isFileUnavailable(eris.Wrap(&textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "No such file"}, "retr")))
	assert.False(t, isFileUnavailable(&textproto.Error{Code: ftp.StatusNotLoggedIn, Msg: "login"}))
	assert.False(t, isFileUnavailable(eris.New("boom")))
}
