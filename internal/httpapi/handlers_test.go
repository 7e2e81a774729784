package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/labcards/internal/catalog"
	"github.com/DoyleJ11/labcards/internal/engine"
	"github.com/DoyleJ11/labcards/internal/session"
)

func newRouter(t *testing.T) (http.Handler, *session.Session, string) {
	t.Helper()
	var cards []catalog.Card
	for _, s := range catalog.SuitOrder {
		cards = append(cards, catalog.Card{Suit: s, Name: string(s)})
	}
	set, err := catalog.NewSet(cards)
	require.NoError(t, err)

	sess := session.New(context.Background(), session.Config{Catalog: set, Mode: engine.ModeSuitSequence})
	t.Cleanup(sess.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>labcards</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	h := SetupRoutes(Deps{
		Session:          sess,
		Logger:           zap.NewNop(),
		StaticDir:        dir,
		InstructionsPath: filepath.Join(dir, "instructions.docx"),
	})
	return h, sess, dir
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz_ReportsDrawnCount(t *testing.T) {
	h, sess, _ := newRouter(t)
	_, err := sess.Draw(context.Background())
	require.NoError(t, err)

	rec := get(h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		OK    bool `json:"ok"`
		Drawn int  `json:"drawn"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, 1, body.Drawn)
}

func TestHealthz_SessionClosed(t *testing.T) {
	h, sess, _ := newRouter(t)
	sess.Close()

	rec := get(h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStaticRoutes(t *testing.T) {
	h, _, _ := newRouter(t)

	rec := get(h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "labcards")

	rec = get(h, "/static/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")
}

func TestInstructions(t *testing.T) {
	h, _, dir := newRouter(t)

	assert.Equal(t, http.StatusNotFound, get(h, "/instructions").Code)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "instructions.docx"), []byte("rules"), 0o644))
	rec := get(h, "/instructions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="instructions.docx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "rules", rec.Body.String())
}
