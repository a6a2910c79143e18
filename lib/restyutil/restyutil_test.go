package restyutil

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mutex    sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.messages == nil {
		o.messages = map[string]string{}
	}
	o.messages[id] = contents
}

func TestInstrumentClientDumpsMessages(t *testing.T) {
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(previous)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	output := &memoryOutput{}
	client := resty.New()
	InstrumentClient(client, nil, output)

	res, err := client.R().
		SetContext(context.Background()).
		Get(server.URL + "/page")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())

	require.Len(t, output.messages, 1)
	message := output.messages["1"]
	require.True(t, strings.Contains(message, "---- REQUEST ----"))
	require.True(t, strings.Contains(message, "GET "+server.URL+"/page"))
	require.True(t, strings.Contains(message, "Content-Type: text/html"))
	require.True(t, strings.Contains(message, "<html><body>hello</body></html>"))
}

func TestInstrumentClientNilOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := resty.New()
	InstrumentClient(client, nil, nil)

	res, err := client.R().Get(server.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode())
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	output.Write("7", "contents")
	contents, err := os.ReadFile(filepath.Join(dir, "7.txt"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(contents))
}

func TestFormatHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Add("B", "2")
	headers.Add("A", "1")
	headers.Add("A", "3")
	require.Equal(t, "A: 1\nA: 3\nB: 2", formatHeaders(headers))
	require.Equal(t, "", formatHeaders(http.Header{}))
}
