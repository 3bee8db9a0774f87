package commands

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/crud"
)

const entitiesYAML = `
entities:
  - name: person
    datasource: main
    create_on_save: true
    table: person
    fields:
      - name: id
        role: primary-key
        literal_type: int
      - name: full_name
        alias: name
        literal_type: string
      - name: email
        literal_type: string
`

// setupProject writes a config and entity definitions next to a sqlite
// database holding two people, and returns the config path
func setupProject(t *testing.T) (string, *sql.DB) {
	t.Helper()
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "people.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE person (id INTEGER PRIMARY KEY AUTOINCREMENT, full_name TEXT, email TEXT);
INSERT INTO person (id, full_name, email) VALUES (1, 'Ada', 'ada@example.com'), (2, 'Grace', NULL);`)
	require.NoError(t, err)

	config := fmt.Sprintf(`
logging:
  level: error
schemas: entities.yml
datasources:
  main:
    driver: sqlite3
    dsn: %s
    max_open_conns: 1
`, dbPath)
	configPath := filepath.Join(dir, "recordkit.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entities.yml"), []byte(entitiesYAML), 0644))

	return configPath, db
}

// run executes the root command with args and returns stdout and stderr
func run(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "recordkit", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"version", "entities", "render", "get", "set", "remove", "search", "serve"} {
		assert.Contains(t, names, expected)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestVersionCommand(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()
	Version, GitCommit, BuildDate, GoVersion = "1.0.0-test", "abc123", "2026-01-01", "go1.23"

	var out bytes.Buffer
	cmd := NewVersionCommand()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "recordkit version: 1.0.0-test")
	assert.Contains(t, out.String(), "Git commit: abc123")
	assert.Contains(t, out.String(), "Go version: go1.23")
}

func TestEntitiesCommand(t *testing.T) {
	configPath, _ := setupProject(t)

	out, _, err := run(t, configPath, "entities")
	require.NoError(t, err)
	assert.Contains(t, out, "person")
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "yes")
}

func TestRenderCommand(t *testing.T) {
	configPath, _ := setupProject(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "select by key",
			args: []string{"render", "person", "id=3"},
			want: "SELECT DISTINCT id AS id, full_name AS name, email AS email FROM person\nWHERE id = 3;\n",
		},
		{
			name: "select by criteria",
			args: []string{"render", "person", "--where", "name=Ada", "--where", "name=Grace"},
			want: "SELECT DISTINCT id AS id, full_name AS name, email AS email FROM person\nWHERE full_name IN ('Ada', 'Grace');\n",
		},
		{
			name: "replace new",
			args: []string{"render", "person", "id=new", "name=Ada", "email=NULL", "--op", "replace"},
			want: "REPLACE INTO person (id, full_name, email) VALUES (NULL, 'Ada', NULL);\n",
		},
		{
			name: "update",
			args: []string{"render", "person", "id=3", "name=Ada", "--op", "update"},
			want: "UPDATE person SET full_name = 'Ada'\nWHERE id = 3;\n",
		},
		{
			name: "delete",
			args: []string{"render", "person", "id=3", "--op", "delete"},
			want: "DELETE FROM person\nWHERE id = 3;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, configPath, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderUnknownOperation(t *testing.T) {
	configPath, _ := setupProject(t)

	_, _, err := run(t, configPath, "render", "person", "id=3", "--op", "merge")
	assert.EqualError(t, err, `unknown operation "merge"`)
}

func TestUnknownEntitySuggests(t *testing.T) {
	configPath, _ := setupProject(t)

	_, stderr, err := run(t, configPath, "get", "persn", "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, crud.ErrUnknownEntity))

	var reported reportedError
	assert.True(t, errors.As(err, &reported))
	assert.Contains(t, stderr, "UNKNOWN ENTITY")
	assert.Contains(t, stderr, "Did you mean: person?")
}

func TestGetCommand(t *testing.T) {
	configPath, _ := setupProject(t)

	out, _, err := run(t, configPath, "get", "person", "1")
	require.NoError(t, err)
	assert.Equal(t, "email: ada@example.com\nid:    1\nname:  Ada\n", out)

	out, _, err = run(t, configPath, "get", "person", "2", "email")
	require.NoError(t, err)
	assert.Equal(t, "email: NULL\n", out)
}

func TestGetCommandNotFound(t *testing.T) {
	configPath, _ := setupProject(t)

	_, stderr, err := run(t, configPath, "get", "person", "99")
	require.Error(t, err)
	assert.True(t, crud.IsNotFound(err))
	assert.Contains(t, stderr, "No person record with id 99.")
}

func TestSetCommandUpdates(t *testing.T) {
	configPath, db := setupProject(t)

	out, _, err := run(t, configPath, "set", "person", "1", "name=Ada Lovelace", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "name   Ada     Ada Lovelace")
	assert.Contains(t, out, "✓ Saved person 1")

	var name string
	require.NoError(t, db.QueryRow("SELECT full_name FROM person WHERE id = 1").Scan(&name))
	assert.Equal(t, "Ada Lovelace", name)
}

func TestSetCommandNothingToChange(t *testing.T) {
	configPath, _ := setupProject(t)

	out, _, err := run(t, configPath, "set", "person", "1", "name=Ada", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to change")
}

func TestSetCommandCreates(t *testing.T) {
	configPath, db := setupProject(t)

	out, _, err := run(t, configPath, "set", "person", "new", "name=Barbara", "email=barbara@example.com", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Created person 3")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM person WHERE full_name = 'Barbara'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSetCommandCancelled(t *testing.T) {
	configPath, db := setupProject(t)

	asked := ""
	confirm = func(message string) (bool, error) {
		asked = message
		return false, nil
	}
	defer func() { confirm = askConfirm }()

	out, _, err := run(t, configPath, "set", "person", "2", "email=grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Save person 2?", asked)
	assert.Contains(t, out, "Save cancelled")

	var email sql.NullString
	require.NoError(t, db.QueryRow("SELECT email FROM person WHERE id = 2").Scan(&email))
	assert.False(t, email.Valid)
}

func TestSetCommandBadAssignment(t *testing.T) {
	configPath, _ := setupProject(t)

	_, _, err := run(t, configPath, "set", "person", "1", "name")
	assert.EqualError(t, err, `expected alias=value, got "name"`)
}

func TestRemoveCommand(t *testing.T) {
	configPath, db := setupProject(t)

	out, _, err := run(t, configPath, "remove", "person", "2", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Removed person 2")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM person").Scan(&count))
	assert.Equal(t, 1, count)

	_, stderr, err := run(t, configPath, "rm", "person", "2", "--yes")
	require.Error(t, err)
	assert.True(t, crud.IsNoRowsAffected(err))
	assert.Contains(t, stderr, "NOTHING WRITTEN")
}

func TestRemoveCommandConfirms(t *testing.T) {
	configPath, _ := setupProject(t)

	confirm = func(string) (bool, error) { return true, nil }
	defer func() { confirm = askConfirm }()

	out, _, err := run(t, configPath, "remove", "person", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removing person 1 from data source main")
	assert.Contains(t, out, "✓ Removed person 1")
}

func TestSearchCommand(t *testing.T) {
	configPath, _ := setupProject(t)

	out, _, err := run(t, configPath, "search", "person")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Grace")
	assert.Contains(t, out, "2 person record(s)")

	out, _, err = run(t, configPath, "search", "person", "email=NULL")
	require.NoError(t, err)
	assert.NotContains(t, out, "Ada")
	assert.Contains(t, out, "1 person record(s)")
}

func TestConfigErrorIsReported(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "recordkit.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("fatal_policy: retry\n"), 0644))
	color.NoColor = true
	defer func() { color.NoColor = false }()

	_, stderr, err := run(t, configPath, "entities")
	require.Error(t, err)
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
}

func TestServeBuildsServer(t *testing.T) {
	configPath, _ := setupProject(t)
	configFlag = configPath
	defer func() { configFlag = "" }()

	cmd := NewServeCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "4567"}))

	env, err := loadEnvironment(cmd)
	require.NoError(t, err)
	defer env.Close(context.Background())

	srv, err := newServer(env)
	require.NoError(t, err)
	assert.Equal(t, "localhost:4567", srv.Addr())
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"name=Ada", "email=NULL", "id=1", "id=2", "note=a=b"})
	require.NoError(t, err)

	assert.Equal(t, "Ada", values["name"])
	assert.Nil(t, values["email"])
	assert.Contains(t, values, "email")
	assert.Equal(t, []interface{}{"1", "2"}, values["id"])
	assert.Equal(t, "a=b", values["note"])
	assert.True(t, strings.HasPrefix(sortedKeys(values)[0], "email"))

	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}
