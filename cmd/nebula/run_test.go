package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/action"
	"github.com/vanyastaff/nebula-sub011/internal/config"
	"github.com/vanyastaff/nebula-sub011/internal/execution"
	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/workflow"
)

func sampleWorkflowFile(t *testing.T, name string) string {
	t.Helper()

	b := workflow.NewBuilder("sample").WithVersion("1.0.0")
	first := b.AddNode("first", action.NoOpID, nil)
	second := b.AddNode("second", action.NoOpID, nil)
	b.Connect(first, second, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	data, err := workflow.EncodeJSON(def)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadWorkflowJSON(t *testing.T) {
	path := sampleWorkflowFile(t, "sample.json")
	def, err := loadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "sample", def.Name)
	assert.Len(t, def.Nodes, 2)
}

func TestLoadWorkflowMissingFile(t *testing.T) {
	_, err := loadWorkflow(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, types.NOT_FOUND, types.CodeOf(err))
}

func TestApplyExecutionDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Execution.MaxParallelNodes = 7
	cfg.Execution.ContinueOnError = true
	cfg.Execution.DefaultRetry = &resilience.RetryConfig{MaxAttempts: 3}

	def := &workflow.Definition{}
	applyExecutionDefaults(def, cfg)
	assert.Equal(t, 7, def.Config.MaxParallelNodes)
	assert.Equal(t, 30*time.Second, def.Config.DefaultTimeout.Std())
	assert.True(t, def.Config.ContinueOnError)
	require.NotNil(t, def.Config.DefaultRetry)
	assert.Equal(t, 3, def.Config.DefaultRetry.MaxAttempts)

	// Workflow settings win over config defaults.
	def = &workflow.Definition{Config: workflow.Config{
		MaxParallelNodes: 2,
		DefaultTimeout:   types.Duration(time.Second),
	}}
	applyExecutionDefaults(def, cfg)
	assert.Equal(t, 2, def.Config.MaxParallelNodes)
	assert.Equal(t, time.Second, def.Config.DefaultTimeout.Std())
}

func TestBuildJournalSink(t *testing.T) {
	cfg := config.Default()
	sink, closeSink, err := buildJournalSink(cfg)
	require.NoError(t, err)
	defer closeSink()
	_, ok := sink.(*execution.MemorySink)
	assert.True(t, ok)

	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.ndjson")
	sink, closeSink, err = buildJournalSink(cfg)
	require.NoError(t, err)
	closeSink()
	_, ok = sink.(*execution.JSONLinesSink)
	assert.True(t, ok)
}

func TestValidateCommand(t *testing.T) {
	path := sampleWorkflowFile(t, "sample.json")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"validate", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "sample: valid (2 nodes, 1 connections, 2 execution levels)")
}

func TestBuildPoliciesAndPools(t *testing.T) {
	cfg := config.Default()
	policies, err := buildPolicies(cfg)
	require.NoError(t, err)
	assert.Nil(t, policies)

	cfg.Policies = map[string]resilience.PolicyConfig{
		"HTTP Request": {Timeout: types.Duration(time.Second)},
	}
	policies, err = buildPolicies(cfg)
	require.NoError(t, err)
	require.Contains(t, policies, types.Key("http_request"))
	assert.Equal(t, time.Second, policies["http_request"].Timeout.Std())

	cfg.Pools = map[string]config.PoolConfig{
		"http_client": {MaxSize: 2, AcquireTimeout: types.Duration(time.Second)},
	}
	registry, err := buildResourceRegistry(cfg)
	require.NoError(t, err)
	require.NotNil(t, registry)
	defer registry.Close(context.Background())
	_, ok := registry.Get("http_client")
	assert.True(t, ok)
}

func TestRunCommandWithPoolsAndPolicies(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nebula.yaml")
	doc := `
pools:
  http_client:
    max_size: 2
    acquire_timeout: 1s
policies:
  no_op:
    retry:
      max_attempts: 2
      base_delay: 1
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o600))

	b := workflow.NewBuilder("pooled").WithVersion("1.0.0")
	b.AddNodeDef(workflow.Node{
		Name:      "pooled",
		ActionID:  action.NoOpID,
		Resources: []types.Key{"http_client"},
	})
	def, err := b.Build()
	require.NoError(t, err)
	data, err := workflow.EncodeJSON(def)
	require.NoError(t, err)
	wfPath := filepath.Join(dir, "pooled.json")
	require.NoError(t, os.WriteFile(wfPath, data, 0o600))

	t.Cleanup(func() { configFile = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", "--config", cfgPath, wfPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "completed")
	assert.Contains(t, out.String(), "pooled")
}

func TestRunCommand(t *testing.T) {
	path := sampleWorkflowFile(t, "sample.json")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "completed")
	assert.Contains(t, out.String(), "first")
	assert.Contains(t, out.String(), "second")
}
