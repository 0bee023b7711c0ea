package shell

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		goos   string
		parent string
		want   Kind
	}{
		{"powershell marker wins", map[string]string{"PSModulePath": "x", "SHELL": "/bin/zsh"}, "linux", "", PowerShell},
		{"posix marker", map[string]string{"SHELL": "/bin/bash"}, "darwin", "", POSIX},
		{"fish", map[string]string{"FISH_VERSION": "3"}, "linux", "", POSIX},
		{"windows cmd", map[string]string{"ComSpec": `C:\Windows\System32\cmd.exe`}, "windows", "", PowerShell},
		{"comspec ignored off windows", map[string]string{"ComSpec": `C:\Windows\System32\cmd.exe`}, "linux", "bash", POSIX},
		{"parent pwsh", nil, "linux", "pwsh", PowerShell},
		{"parent powershell exe", nil, "windows", "PowerShell.exe", PowerShell},
		{"parent bash", nil, "linux", "bash", POSIX},
		{"unknown parent", nil, "linux", "", POSIX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := detector{
				lookupEnv:  envFrom(tt.env),
				goos:       tt.goos,
				parentName: func() string { return tt.parent },
			}
			assert.Equal(t, tt.want, d.detect())
		})
	}
}

func TestInvocation(t *testing.T) {
	tests := []struct {
		kind  Kind
		goos  string
		shell string
		flag  string
	}{
		{PowerShell, "windows", "powershell", "-Command"},
		{POSIX, "windows", "cmd", "/C"},
		{PowerShell, "linux", "sh", "-c"},
		{POSIX, "darwin", "sh", "-c"},
	}
	for _, tt := range tests {
		r := &Runner{Kind: tt.kind, GOOS: tt.goos}
		shell, flag := r.Invocation()
		assert.Equal(t, tt.shell, shell, "%s/%s", tt.kind, tt.goos)
		assert.Equal(t, tt.flag, flag, "%s/%s", tt.kind, tt.goos)
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`{"command":"ls","working_directory":"/tmp"}`)
	require.NoError(t, err)
	assert.Equal(t, Args{Command: "ls", WorkingDirectory: "/tmp"}, args)

	args, err = ParseArgs(`{"command":"pwd"}`)
	require.NoError(t, err)
	assert.Equal(t, "", args.WorkingDirectory)

	_, err = ParseArgs(`{"working_directory":"/tmp"}`)
	assert.Error(t, err)

	_, err = ParseArgs(`not json`)
	assert.Error(t, err)
}

func TestDescriptorRequiresBothFields(t *testing.T) {
	d := Descriptor()
	assert.Equal(t, "execute_command", d.Name)
	assert.Equal(t, "object", d.Parameters["type"])
	assert.Equal(t, []string{"command", "working_directory"}, d.Parameters["required"])
}

func TestRunPOSIX(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := NewRunner(POSIX)
	ctx := context.Background()
	dir := t.TempDir()

	assert.Equal(t, "hello\n", r.Run(ctx, "echo hello", dir))
	assert.Equal(t, "out\n\n---\nstderr:\nerr\n", strings.TrimPrefix(r.Run(ctx, "echo out; echo err 1>&2", dir), "stdout:\n"))
	assert.Equal(t, "", r.Run(ctx, "exit 3", dir), "exit status is not reported")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), nil, 0o600))
	assert.Contains(t, r.Run(ctx, "ls", dir), "marker.txt")

	got := r.Run(ctx, "ls", filepath.Join(dir, "does-not-exist"))
	assert.True(t, strings.HasPrefix(got, "Failed to execute command 'ls': "), got)
}
