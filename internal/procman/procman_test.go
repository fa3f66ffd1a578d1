package procman_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facebook-group-scraper/internal/procman"
)

type fakeSource struct {
	procs      []procman.Process
	terminated []int32
	killed     []int32
	// pids that ignore Terminate
	stubborn map[int32]bool
}

func (f *fakeSource) Processes(context.Context) ([]procman.Process, error) {
	alive := make([]procman.Process, 0, len(f.procs))
	for _, p := range f.procs {
		if f.running(p.PID) {
			alive = append(alive, p)
		}
	}
	return alive, nil
}

func (f *fakeSource) running(pid int32) bool {
	for _, k := range f.killed {
		if k == pid {
			return false
		}
	}
	for _, t := range f.terminated {
		if t == pid && !f.stubborn[pid] {
			return false
		}
	}
	return true
}

func (f *fakeSource) Terminate(_ context.Context, pid int32) error {
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeSource) Kill(_ context.Context, pid int32) error {
	f.killed = append(f.killed, pid)
	return nil
}

func (f *fakeSource) Running(_ context.Context, pid int32) (bool, error) {
	return f.running(pid), nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleProcesses() []procman.Process {
	return []procman.Process{
		{PID: 10, Name: "chromedriver", Cmdline: []string{"chromedriver", "--port=9515"}},
		{PID: 11, Name: "chrome", Cmdline: []string{"/opt/google/chrome/chrome", "--remote-debugging-port=9222", "--headless"}},
		{PID: 12, Name: "chrome", Cmdline: []string{"/opt/google/chrome/chrome"}},
		{PID: 13, Name: "bash", Cmdline: []string{"bash"}},
		{PID: 14, Name: "Chromium", Cmdline: []string{"chromium", "--user-data-dir=/tmp/p"}},
	}
}

func TestClassify(t *testing.T) {
	m := procman.New(quietLogger())

	tests := []struct {
		name    string
		cmdline []string
		want    procman.Kind
	}{
		{"chromedriver", nil, procman.KindDriver},
		{"geckodriver", nil, procman.KindDriver},
		{"chrome", []string{"chrome", "--no-first-run"}, procman.KindAutomation},
		{"chrome", []string{"chrome", "--remote-debugging-port=0"}, procman.KindAutomation},
		{"chrome", []string{"chrome"}, procman.KindRegular},
		{"chrome", nil, procman.KindRegular},
		{"sshd", []string{"sshd", "--remote-debugging-port"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Classify(tt.name, tt.cmdline), "%s %v", tt.name, tt.cmdline)
	}
}

func TestScan(t *testing.T) {
	src := &fakeSource{procs: sampleProcesses()}
	m := procman.New(quietLogger(), procman.WithSource(src))

	report, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Drivers, 1)
	assert.Len(t, report.Automation, 2)
	assert.Len(t, report.Regular, 1)

	stray := report.Stray()
	require.Len(t, stray, 3)
	assert.Equal(t, int32(10), stray[0].PID)
}

func TestTerminateStray(t *testing.T) {
	src := &fakeSource{procs: sampleProcesses(), stubborn: map[int32]bool{14: true}}
	m := procman.New(quietLogger(), procman.WithSource(src), procman.WithGrace(0))

	n, err := m.TerminateStray(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int32{10, 11, 14}, src.terminated)
	assert.Equal(t, []int32{14}, src.killed)
	assert.True(t, src.running(12))
}

func TestTerminateStrayNothingToDo(t *testing.T) {
	src := &fakeSource{procs: []procman.Process{{PID: 1, Name: "init"}}}
	m := procman.New(quietLogger(), procman.WithSource(src), procman.WithGrace(0))

	n, err := m.TerminateStray(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.terminated)
}

func TestWithIndicatorsIsACopy(t *testing.T) {
	base := procman.New(quietLogger())
	custom := base.WithIndicators("--my-flag")

	assert.Equal(t, []string{"--my-flag"}, custom.Indicators())
	assert.Equal(t, procman.DefaultIndicators, base.Indicators())

	got := custom.Indicators()
	got[0] = "mutated"
	assert.Equal(t, []string{"--my-flag"}, custom.Indicators())

	assert.Equal(t, procman.KindRegular, custom.Classify("chrome", []string{"chrome", "--no-first-run"}))
	assert.Equal(t, procman.KindAutomation, custom.Classify("chrome", []string{"chrome", "--my-flag"}))
}

func TestWaitForProfileUnlockRemovesStaleLocks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.Symlink("host-1234", filepath.Join(dir, "SingletonLock")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lockfile"), nil, 0644))

	m := procman.New(quietLogger())
	ok, err := m.WaitForProfileUnlock(context.Background(), dir, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, lock := range procman.LockFiles(dir) {
		_, err := os.Lstat(lock)
		assert.True(t, os.IsNotExist(err), lock)
	}
}

func TestWaitForProfileUnlockGivesUp(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can remove files from read-only directories")
	}
	dir := filepath.Join(t.TempDir(), "profile")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lock"), nil, 0644))
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })


	m := procman.New(quietLogger())
	ok, err := m.WaitForProfileUnlock(context.Background(), dir, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
