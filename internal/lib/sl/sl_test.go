package sl_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := sl.Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := sl.New("prod", &buf)

	log.Debug("hidden")
	log.Info("payment confirmed", slog.String("payment_id", "pay_1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "payment confirmed", entry["msg"])
	assert.Equal(t, "pay_1", entry["payment_id"])
}

func TestNew_LocalEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := sl.New("local", &buf)

	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
