package indexer_test

import (
	"testing"

	"github.com/manishrjain/denorm/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTaskEncoding(t *testing.T) {
	buf, err := task.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"parent_kind":"Post","child_kind":"User","child_id":"u1"}`, string(buf))

	got, err := indexer.DecodeTask(buf)
	require.NoError(t, err)
	assert.Equal(t, task, got)
	assert.Equal(t, "Post<-User:u1", got.String())

	_, err = indexer.DecodeTask([]byte(`{"parent_kind":"Post","child_kind":"User"}`))
	assert.Error(t, err)
	_, err = indexer.DecodeTask([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseSyncMode(t *testing.T) {
	for in, want := range map[string]indexer.SyncMode{
		"":           indexer.Inline,
		"inline":     indexer.Inline,
		"Deferred":   indexer.Deferred,
		" DEFERRED ": indexer.Deferred,
	} {
		got, err := indexer.ParseSyncMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := indexer.ParseSyncMode("async")
	assert.Error(t, err)
	assert.Equal(t, "SyncMode(9)", indexer.SyncMode(9).String())
}

func TestSyncModeYaml(t *testing.T) {
	var v struct {
		Mode indexer.SyncMode `yaml:"mode"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("mode: deferred\n"), &v))
	assert.Equal(t, indexer.Deferred, v.Mode)

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "mode: deferred\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("mode: later\n"), &v))
}
