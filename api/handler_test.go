package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"top-pick/config"
	"top-pick/models"
	"top-pick/search"
	"top-pick/widget"
)

type stubSource struct {
	candidates []models.Candidate
	err        error
}

func (s *stubSource) Fetch(context.Context) ([]models.Candidate, error) {
	return s.candidates, s.err
}

func holdings() []models.Candidate {
	return []models.Candidate{
		{Rank: models.NewRank(2), BaseTicker: "INFY:NSE", Name: "Infosys", Description: "IT services and consulting"},
		{Rank: models.NewRank(1), BaseTicker: "TCS:NSE", Name: "Tata Consultancy Services", Description: "IT services"},
	}
}

func newServer(t *testing.T, src *stubSource, refresh bool) (*httptest.Server, *widget.Widget) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	engine := search.NewInMemoryEngine(nil)
	w, err := widget.New(src, config.DefaultWidget(), widget.WithID("tp"), widget.WithLogger(log), widget.WithIndex(engine))
	require.NoError(t, err)
	if refresh {
		_ = w.Refresh(context.Background())
	}

	h := NewHandler(w, engine, src, log)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, w
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t, &stubSource{}, false)
	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestTopPick(t *testing.T) {
	srv, _ := newServer(t, &stubSource{candidates: holdings()}, true)

	resp, body := get(t, srv.URL+"/api/top-pick")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap widget.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.Equal(t, "tp", snap.ID)
	assert.Equal(t, "TCS", snap.Display.Ticker)
	assert.Equal(t, "Overall Rank: 1.0", snap.Display.RankLabel)
	assert.Equal(t, "HIDDEN", snap.Visibility)
}

func TestTopPickUnavailable(t *testing.T) {
	t.Run("not loaded", func(t *testing.T) {
		srv, _ := newServer(t, &stubSource{candidates: holdings()}, false)
		resp, body := get(t, srv.URL+"/api/top-pick")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Contains(t, body, "not loaded")
	})

	t.Run("fallback", func(t *testing.T) {
		srv, _ := newServer(t, &stubSource{err: errors.New("down")}, true)
		resp, body := get(t, srv.URL+"/api/top-pick")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var snap widget.Snapshot
		require.NoError(t, json.Unmarshal([]byte(body), &snap))
		assert.True(t, snap.Fallback)
		assert.Equal(t, "Unable to load top pick at this time.", snap.Message)
	})
}

func TestScriptEndpoint(t *testing.T) {
	srv, _ := newServer(t, &stubSource{}, false)
	resp, body := get(t, srv.URL+"/widget.js")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(body, widget.LibraryScript))
	assert.Contains(t, body, `TopPick.boot({"id":"tp"`)
	assert.Contains(t, body, `"dataUrl":"`+srv.URL+`/data/holdings.json"`)
}

func TestFragmentEndpoint(t *testing.T) {
	srv, _ := newServer(t, &stubSource{candidates: holdings()}, true)
	resp, body := get(t, srv.URL+"/widget")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `<aside id="tp"`)
	assert.Contains(t, body, `<div class="company-name">TCS</div>`)
}

func TestHoldingsEndpoint(t *testing.T) {
	srv, _ := newServer(t, &stubSource{candidates: holdings()}, false)
	resp, body := get(t, srv.URL+"/data/holdings.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []models.Candidate
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, holdings(), got)

	srv, _ = newServer(t, &stubSource{err: errors.New("down")}, false)
	resp, _ = get(t, srv.URL+"/data/holdings.json")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	srv, _ = newServer(t, &stubSource{}, false)
	_, body = get(t, srv.URL+"/data/holdings.json")
	assert.Equal(t, "[]\n", body)
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newServer(t, &stubSource{candidates: holdings()}, true)

	resp, _ := get(t, srv.URL+"/api/search")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := get(t, srv.URL+"/api/search?q=tcs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []models.Candidate
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "TCS:NSE", got[0].BaseTicker)

	_, body = get(t, srv.URL+"/api/search?q=zzz")
	assert.Equal(t, "[]\n", body)
}

func TestHoldingEndpoint(t *testing.T) {
	srv, _ := newServer(t, &stubSource{candidates: holdings()}, true)

	resp, _ := get(t, srv.URL+"/api/holding")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := get(t, srv.URL+"/api/holding?ticker=INFY:NSE")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"name":"Infosys"`)

	resp, _ = get(t, srv.URL+"/api/holding?ticker=WIPRO")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.html"), []byte("<p>demo</p>"), 0o600))

	log := logrus.New()
	log.SetOutput(io.Discard)
	w, err := widget.New(&stubSource{}, config.DefaultWidget(), widget.WithLogger(log))
	require.NoError(t, err)
	h := NewHandler(w, search.NewInMemoryEngine(nil), nil, log)
	h.StaticDir = dir
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/demo.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<p>demo</p>", body)
	assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))

	resp, _ = get(t, srv.URL+"/data/holdings.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
