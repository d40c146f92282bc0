package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/chainkit/errors"
)

func chainrun(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	args = append([]string{"--config", "config.yml"}, args...)
	err := run(context.Background(), args, strings.NewReader(input), &out)
	return out.String(), err
}

func TestRun_Identity(t *testing.T) {
	out, err := chainrun(t, "1\n\n\"a\"\n{\"k\":[1,2]}\n")
	require.NoError(t, err)
	assert.Equal(t, "1\n\"a\"\n{\"k\":[1,2]}\n", out)
}

func TestRun_CatalogPipeline(t *testing.T) {
	out, err := chainrun(t, "1\n2\n3\n", "--pipeline", "pipelines.yml", "--name", "squares")
	require.NoError(t, err)
	assert.Equal(t, "2\n5\n10\n", out)
}

func TestRun_FlushOnEnd(t *testing.T) {
	out, err := chainrun(t, "1\n2\n3\n", "-p", "pipelines.yml", "-n", "total")
	require.NoError(t, err)
	assert.Equal(t, "14\n", out)
}

func TestRun_EagerListAndSuppression(t *testing.T) {
	out, err := chainrun(t, "1\n2\n3\n", "-p", "pipelines.yml", "-n", "odd-doubles")
	require.NoError(t, err)
	assert.Equal(t, "-2\n-6\n", out)
}

func TestRun_SmallBufferKeepsOrder(t *testing.T) {
	var in strings.Builder
	for range 50 {
		in.WriteString("4\n")
	}
	out, err := chainrun(t, in.String(), "-p", "pipelines.yml", "-n", "expand", "--high-water-mark", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 200)
	assert.Equal(t, []string{"1", "2", "3", "4", "1"}, lines[:5])
}

func TestRun_SingleDefinitionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "def.yml")
	require.NoError(t, os.WriteFile(path, []byte("stages: [negate]\n"), 0o600))
	out, err := chainrun(t, "1.5\n-2\n", "-p", path)
	require.NoError(t, err)
	assert.Equal(t, "-1.5\n2\n", out)
}

func TestRun_UnknownPipeline(t *testing.T) {
	_, err := chainrun(t, "", "-p", "pipelines.yml", "-n", "missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestRun_BadInput(t *testing.T) {
	out, err := chainrun(t, "1\n{oops\n3\n")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, "1\n", out)
}

func TestRun_StageError(t *testing.T) {
	out, err := chainrun(t, "2\n\"x\"\n", "-p", "pipelines.yml", "-n", "squares")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStageFailed))
	assert.Equal(t, "5\n", out)
}

func TestRun_List(t *testing.T) {
	out, err := chainrun(t, "", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "drop-even\n")
	assert.Contains(t, out, "sum\n")
}

func TestRun_Version(t *testing.T) {
	out, err := chainrun(t, "", "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "dev"), out)
}

func TestRun_BadFlag(t *testing.T) {
	_, err := chainrun(t, "", "--no-such-flag")
	assert.Error(t, err)
}

type brokenWriter struct{ err error }

func (w brokenWriter) Write([]byte) (int, error) { return 0, w.err }

func TestRun_WriterFailureStopsInput(t *testing.T) {
	var in strings.Builder
	for range 5000 {
		in.WriteString("123456789\n")
	}
	broken := stderrors.New("broken pipe")

	done := make(chan error, 1)
	go func() {
		args := []string{"--config", "config.yml", "--high-water-mark", "1"}
		done <- run(context.Background(), args, strings.NewReader(in.String()), brokenWriter{err: broken})
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, broken)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the writer failed")
	}
}
