package screenshot

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intility/dadp-mcp-go-live/logging"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions("http://localhost:3000", "frontend.png")

	assert.Equal(t, time.Second, opts.Wait)
	assert.Equal(t, 1920, opts.Width)
	assert.Equal(t, 1080, opts.Height)
	assert.Equal(t, 30*time.Second, opts.NavigationTimeout)
	assert.NoError(t, opts.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"missing url", func(o *Options) { o.URL = "" }},
		{"relative url", func(o *Options) { o.URL = "localhost:3000/index" }},
		{"no host", func(o *Options) { o.URL = "http://" }},
		{"missing output", func(o *Options) { o.Output = "" }},
		{"zero width", func(o *Options) { o.Width = 0 }},
		{"negative height", func(o *Options) { o.Height = -1 }},
		{"negative wait", func(o *Options) { o.Wait = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions("http://localhost:3000", "out.png")
			tt.modify(&opts)
			assert.Error(t, opts.Validate())
		})
	}

	assert.NoError(t, DefaultOptions("file:///tmp/index.html", "out.png").Validate())
}

func TestCapture_RejectsInvalidOptionsBeforeLaunch(t *testing.T) {
	_, err := Capture(context.Background(), Options{}, logging.Discard())
	assert.Error(t, err)
}

func TestCollector(t *testing.T) {
	c := newCollector()

	c.listen(&runtime.EventConsoleAPICalled{
		Type: runtime.APITypeWarning,
		Args: []*runtime.RemoteObject{
			{Type: runtime.TypeString, Value: []byte(`"slow request"`)},
			{Type: runtime.TypeNumber, Value: []byte(`42`)},
		},
	})
	c.listen(&runtime.EventExceptionThrown{
		ExceptionDetails: &runtime.ExceptionDetails{
			Text:      "Uncaught",
			Exception: &runtime.RemoteObject{Type: runtime.TypeObject, Description: "TypeError: x is undefined"},
		},
	})
	c.listen(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{Text: "Uncaught SyntaxError"}})
	c.listen("unrelated event")

	result := c.snapshot()
	require.Len(t, result.ConsoleMessages, 1)
	assert.Equal(t, "[warning] slow request 42", result.ConsoleMessages[0])
	assert.Equal(t, []string{"TypeError: x is undefined", "Uncaught SyntaxError"}, result.PageErrors)
}

func TestCollector_NetworkIdleOnlyAfterArm(t *testing.T) {
	c := newCollector()

	c.listen(&page.EventLifecycleEvent{Name: "networkIdle"})
	assert.Len(t, c.idle, 0)

	c.arm()
	c.listen(&page.EventLifecycleEvent{Name: "networkIdle"})
	assert.Len(t, c.idle, 1)

	// A new document starts over.
	c.listen(&page.EventLifecycleEvent{Name: "init"})
	assert.Len(t, c.idle, 0)

	c.listen(&page.EventLifecycleEvent{Name: "load"})
	c.listen(&page.EventLifecycleEvent{Name: "networkIdle"})
	c.listen(&page.EventLifecycleEvent{Name: "networkIdle"})
	assert.Len(t, c.idle, 1)
}

func TestWaitNetworkIdle(t *testing.T) {
	idle := make(chan struct{}, 1)
	idle <- struct{}{}
	assert.NoError(t, waitNetworkIdle(context.Background(), idle))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, waitNetworkIdle(ctx, idle), context.DeadlineExceeded)
}

func findBrowser() bool {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestCapture_Page(t *testing.T) {
	if testing.Short() || !findBrowser() {
		t.Skip("no headless browser available")
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html", []byte(`<html><body><h1>go-live</h1><script>
console.log("page ready");
setTimeout(function() { throw new Error("late failure"); }, 10);
</script></body></html>`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	opts := DefaultOptions(srv.URL, filepath.Join(t.TempDir(), "page.png"))
	opts.Wait = 200 * time.Millisecond
	opts.Width, opts.Height = 800, 600

	result, err := Capture(context.Background(), opts, logging.Discard())
	require.NoError(t, err)

	data, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
	assert.Contains(t, result.ConsoleMessages, "[log] page ready")
	require.NotEmpty(t, result.PageErrors)
	assert.Contains(t, result.PageErrors[0], "late failure")
}
