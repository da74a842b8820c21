package maintenance

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(script string) Command {
	return Command{Name: "sh", Args: []string{"-c", script}}
}

func TestExecRunnerPipe(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	r := ExecRunner{}
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		err := r.Pipe(ctx, shell("echo hello"), shell(`read line; [ "$line" = hello ]`))
		assert.NoError(t, err)
	})

	t.Run("consumer exits early", func(t *testing.T) {
		// The producer keeps writing and dies on the closed pipe
		err := r.Pipe(ctx, shell("while echo row; do :; done"), shell("read line; echo syntax error at line 1 >&2; exit 3"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "syntax error at line 1")
	})

	t.Run("producer fails", func(t *testing.T) {
		err := r.Pipe(ctx, shell("echo not in gzip format >&2; exit 1"), shell("cat > /dev/null"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in gzip format")
	})

	t.Run("consumer missing", func(t *testing.T) {
		err := r.Pipe(ctx, shell("echo hi"), Command{Name: "definitely-not-a-real-binary"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "definitely-not-a-real-binary")
	})
}

func TestExecRunnerRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	r := ExecRunner{}

	require.NoError(t, r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", `[ "$BACKUP_MARK" = 1 ]`}, Env: []string{"BACKUP_MARK=1"}}))

	err := r.Run(context.Background(), shell("echo pg_dump: connection refused >&2; exit 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
