package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	assert.ElementsMatch(t, []string{"optimize", "purge", "upload", "replay", "enqueue"}, names)
}

func TestPurgeCmd_RequiresKeyFlags(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"purge", "--session", "s1"})

	err := root.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "keyword")
}

func TestUploadOptions_ObjectKey(t *testing.T) {
	opts := uploadOptions{module: "networks", network: "Crossroads", job: "send", account: "acct"}
	at := time.Date(2025, 2, 1, 7, 30, 15, 0, time.UTC)

	key := opts.objectKey(at)

	assert.Equal(t, "networks/crossroads/send/acct/2025-02-01/7/2025-02-01T07:30:15.000Z.json", key)
}

func TestReadRecordsFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"session_id":"s1","extra":1},{"session_id":"s2"}]`), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte(`{"session_id":"s1"}`), 0o600))

	records, err := readRecordsFile(good)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"session_id":"s1","extra":1}`, string(records[0]))

	_, err = readRecordsFile(bad)
	assert.Error(t, err)

	_, err = readRecordsFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestReadRecordsFile_KeepsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"vertical":"auto","network_specific":{"a":1}}]`), 0o600))

	records, err := readRecordsFile(path)
	require.NoError(t, err)

	out, err := json.Marshal(records)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"vertical":"auto","network_specific":{"a":1}}]`, string(out))
}

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) PublishObjectCreated(_ context.Context, bucket, key string) error {
	p.published = append(p.published, bucket+"/"+key)
	return p.err
}

func TestEnqueue(t *testing.T) {
	publisher := &recordingPublisher{}
	var out bytes.Buffer

	err := enqueue(context.Background(), publisher, &out, "report-conversions-bucket", "networks/tonic/send/acct/2025-02-01/7/a.json")

	require.NoError(t, err)
	assert.Equal(t, []string{"report-conversions-bucket/networks/tonic/send/acct/2025-02-01/7/a.json"}, publisher.published)
	assert.Contains(t, out.String(), "enqueued s3://report-conversions-bucket/")
}

func TestEnqueue_WrapsPublishError(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("queue does not exist")}

	err := enqueue(context.Background(), publisher, &bytes.Buffer{}, "b", "k")

	assert.ErrorContains(t, err, "queue does not exist")
}
