package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const studentsCSV = `name,A,B,skill:code
s1,1,2,1
s2,1,2,
s3,1,2,0.5
s4,2,1,
`

const projectsCSV = `name,min,max,skill:code
A,1,2,1
B,1,3,
`

type fixture struct {
	dir      string
	students string
	projects string
}

func newFixture(t *testing.T, projects string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		students: filepath.Join(dir, "students.csv"),
		projects: filepath.Join(dir, "projects.csv"),
	}
	require.NoError(t, os.WriteFile(f.students, []byte(studentsCSV), 0o644))
	require.NoError(t, os.WriteFile(f.projects, []byte(projects), 0o644))
	return f
}

func (f fixture) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	args = append([]string{"-config", filepath.Join(f.dir, "absent.yaml")}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_WritesStdout(t *testing.T) {
	f := newFixture(t, projectsCSV)
	code, out, errOut := f.run("-students", f.students, "-projects", f.projects)
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.HasPrefix(out, "name,project\n"))
	assert.True(t, strings.HasSuffix(out, "s4,B\n"))
}

func TestRun_OutputFileAndForce(t *testing.T) {
	f := newFixture(t, projectsCSV)
	output := filepath.Join(f.dir, "out.csv")
	code, out, errOut := f.run("-students", f.students, "-projects", f.projects,
		"-output", output, "-force", "s4=A", "-warm")
	require.Equal(t, 0, code, errOut)
	assert.Empty(t, out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "s4,A\n")
}

func TestRun_Infeasible(t *testing.T) {
	f := newFixture(t, "name,min,max\nA,0,1\nB,0,1\n")
	code, out, errOut := f.run("-students", f.students, "-projects", f.projects)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "capacity:max")
}

func TestRun_UsageErrors(t *testing.T) {
	f := newFixture(t, projectsCSV)

	code, _, errOut := f.run("-students", f.students)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "both -students and -projects are required")

	code, _, errOut = f.run("-students", f.students, "-projects", f.projects, "-force", "s4")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Student=Project")

	code, _, _ = f.run("-bogus")
	assert.Equal(t, 2, code)

	code, _, errOut = f.run("-students", f.students, "-projects", f.projects, "-solver", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "nope")
}

func TestRun_PrintConfig(t *testing.T) {
	t.Setenv("PGCONN", "postgres://secret")
	f := newFixture(t, projectsCSV)
	code, out, errOut := f.run("-print-config", "-solver", "exhaustive", "-diagnose=false")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "backend: exhaustive")
	assert.Contains(t, out, "diagnose: false")
	assert.NotContains(t, out, "secret")
}
