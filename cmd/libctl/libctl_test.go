package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassword_FromStdin(t *testing.T) {
	password, err := readPassword(strings.NewReader("s3cret-pass\n"), &bytes.Buffer{}, true)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", password)

	password, err = readPassword(strings.NewReader("no-newline"), &bytes.Buffer{}, true)
	require.NoError(t, err)
	assert.Equal(t, "no-newline", password)

	_, err = readPassword(strings.NewReader("\n"), &bytes.Buffer{}, true)
	assert.Error(t, err)
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd(&env{})

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "create-user", "import-books"})
}

func TestImportBooks_DryRunNeedsNoDatabase(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/books.csv"
	require.NoError(t, writeFile(path, "title,author,isbn,category,page_count\nDune,Frank Herbert,9780441172719,Science Fiction,412\n"))

	e := &env{}
	root := newRootCmd(e)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"import-books", "--dry-run", path})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "1 rows parsed, 0 skipped")
	assert.Nil(t, e.cfg, "dry run must not connect")
}

func TestCreateUser_RejectsUnknownRole(t *testing.T) {
	root := newRootCmd(&env{})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"create-user", "--email", "a@b.co", "--username", "admin", "--full-name", "A", "--role", "root"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid role "root"`)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
