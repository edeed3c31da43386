package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/localnerve/memebase/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranslator(t *testing.T, burst int, handler http.HandlerFunc) *Translator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTranslator(&config.Config{
		TranslateURL:   srv.URL + "/translate_a/single",
		TranslateRate:  0.001,
		TranslateBurst: burst,
	}, srv.Client())
}

func TestTranslate(t *testing.T) {
	translator := newTestTranslator(t, 5, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "gtx", q.Get("client"))
		assert.Equal(t, "auto", q.Get("sl"))
		assert.Equal(t, "vi", q.Get("tl"))
		assert.Equal(t, "Hello. How are you?", q.Get("q"))
		_, _ = w.Write([]byte(`[[["Xin chào. ","Hello. ",null,null,10],["Bạn khỏe không?","How are you?",null,null,10]],null,"en",null,null,null,1]`))
	})

	result, err := translator.Translate(context.Background(), TranslateInput{Text: " Hello. How are you? ", To: "vi"})
	require.NoError(t, err)
	assert.Equal(t, "Xin chào. Bạn khỏe không?", result.Translation)
	assert.Equal(t, "en", result.From, "the detected language is reported")
	assert.Equal(t, "vi", result.To)
	assert.Equal(t, "Hello. How are you?", result.Text)
}

func TestTranslateRateLimited(t *testing.T) {
	translator := newTestTranslator(t, 1, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[["Hola","Hello"]],null,"en"]`))
	})
	ctx := context.Background()

	_, err := translator.Translate(ctx, TranslateInput{Text: "Hello", From: "en", To: "es"})
	require.NoError(t, err)

	_, err = translator.Translate(ctx, TranslateInput{Text: "Hello", From: "en", To: "es"})
	requireStatus(t, err, http.StatusTooManyRequests)
}

func TestTranslateValidation(t *testing.T) {
	translator := newTestTranslator(t, 5, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ctx := context.Background()

	_, err := translator.Translate(ctx, TranslateInput{Text: "  ", To: "vi"})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = translator.Translate(ctx, TranslateInput{Text: "Hello"})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestParseGoogleTranslation(t *testing.T) {
	_, _, err := parseGoogleTranslation([]byte(`{"error":"nope"}`))
	assert.Error(t, err)

	text, detected, err := parseGoogleTranslation([]byte(`[[["Bonjour","Hello"]]]`))
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", text)
	assert.Empty(t, detected)
}
