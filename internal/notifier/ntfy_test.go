package notifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNtfyNotify(t *testing.T) {
	var gotTitle, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotTitle = r.Header.Get("Title")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer ts.Close()

	err := NewNtfy(ts.URL).Notify(context.Background(), "Sensor offline", "i2cbus: bus is closed")
	require.NoError(t, err)
	assert.Equal(t, "Sensor offline", gotTitle)
	assert.Equal(t, "i2cbus: bus is closed", gotBody)
}

func TestNtfyNotifyBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	err := NewNtfy(ts.URL).Notify(context.Background(), "t", "m")
	assert.ErrorContains(t, err, "429")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, NewNoop().Notify(context.Background(), "t", "m"))
}
