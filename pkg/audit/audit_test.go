package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/filevault/pkg/configs"
)

func newTestRecorder(t *testing.T, queueSize int) (*AsyncRecorder, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer

	logger := zerolog.New(&buf)
	cfg := &configs.AuditConfig{Enabled: true, QueueSize: queueSize}

	r := NewRecorder(cfg, &logger, nil)
	ar, ok := r.(*AsyncRecorder)
	require.True(t, ok)

	return ar, &buf
}

func TestRecorderWritesLog(t *testing.T) {
	r, buf := newTestRecorder(t, 16)

	r.Record(Event{
		Action:  ActionFileUploaded,
		ActorID: "alice@example.com",
		FileID:  "f_01",
	})

	require.NoError(t, r.Close())

	out := buf.String()
	assert.Contains(t, out, `"audit_action":"file.uploaded"`)
	assert.Contains(t, out, `"actor":"alice@example.com"`)
	assert.Contains(t, out, `"file_id":"f_01"`)
}

func TestRecorderFillsOccurredAt(t *testing.T) {
	r, buf := newTestRecorder(t, 4)

	before := time.Now().UTC()
	r.Record(Event{Action: ActionShareCreated, ShareID: "sh_01"})
	require.NoError(t, r.Close())

	assert.Contains(t, buf.String(), `"occurred_at"`)
	assert.True(t, time.Now().UTC().After(before))
}

func TestRecorderCloseIdempotent(t *testing.T) {
	r, _ := newTestRecorder(t, 4)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestRecordAfterCloseDropsEvent(t *testing.T) {
	r, buf := newTestRecorder(t, 4)

	require.NoError(t, r.Close())

	// 关闭后提交不得 panic，事件直接丢弃
	assert.NotPanics(t, func() {
		r.Record(Event{Action: ActionFileViewed, FileID: "f_03"})
	})
	assert.NotContains(t, buf.String(), "f_03")
}

func TestRecorderPreservesOrder(t *testing.T) {
	r, buf := newTestRecorder(t, 64)

	actions := []string{ActionFileUploaded, ActionFileViewed, ActionFileDeleted}
	for _, a := range actions {
		r.Record(Event{Action: a, FileID: "f_02"})
	}

	require.NoError(t, r.Close())

	out := buf.String()
	first := bytes.Index([]byte(out), []byte(ActionFileUploaded))
	second := bytes.Index([]byte(out), []byte(ActionFileViewed))
	third := bytes.Index([]byte(out), []byte(ActionFileDeleted))

	require.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestNopRecorder(t *testing.T) {
	cfg := &configs.AuditConfig{Enabled: false}
	logger := zerolog.Nop()

	r := NewRecorder(cfg, &logger, nil)
	_, ok := r.(NopRecorder)
	require.True(t, ok)

	r.Record(Event{Action: ActionFileDeleted})
	assert.NoError(t, r.Close())
}
