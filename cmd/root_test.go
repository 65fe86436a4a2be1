package cmd

import (
	"os"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/cmd/add"
	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/testutil"
)

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	originalArgs := os.Args
	os.Args = append([]string{"libris"}, args...)
	t.Cleanup(func() { os.Args = originalArgs })

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("libris"),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)

	return cli, ctx
}

func TestAddCommandParsing(t *testing.T) {
	testutil.ResetConfig(t)

	var got add.Options
	orig := runAdd
	runAdd = func(opts add.Options) error {
		got = opts
		return nil
	}
	t.Cleanup(func() { runAdd = orig })

	cli, ctx := parseCLI(t, "add", "--title", "Fire", "-a", "Kristin Cashore", "-i", "--covers")
	assert.Equal(t, "Fire", cli.Add.Title)
	require.NoError(t, ctx.Run())

	assert.Equal(t, add.Options{Title: "Fire", Author: "Kristin Cashore", Interactive: true, Covers: true}, got)
}

func TestAddCommandIDAndISBN(t *testing.T) {
	cli, _ := parseCLI(t, "add", "--id", "6137154")
	assert.Equal(t, "6137154", cli.Add.ID)

	cli, _ = parseCLI(t, "add", "--isbn", "9780803734616")
	assert.Equal(t, "9780803734616", cli.Add.ISBN)

	cli, _ = parseCLI(t, "add", "-f", "fire.epub")
	assert.Equal(t, "fire.epub", cli.Add.File)
}

func TestReadCommandsDispatch(t *testing.T) {
	var listJSON, showYAML, overwrite bool
	var shownID, exportPath string

	origList, origShow, origExport := listBooks, showBook, exportLibrary
	listBooks = func(asJSON bool) error { listJSON = asJSON; return nil }
	showBook = func(id string, asYAML bool) error { shownID, showYAML = id, asYAML; return nil }
	exportLibrary = func(path string, ow bool) error { exportPath, overwrite = path, ow; return nil }
	t.Cleanup(func() { listBooks, showBook, exportLibrary = origList, origShow, origExport })

	_, ctx := parseCLI(t, "list", "--json")
	require.NoError(t, ctx.Run())
	assert.True(t, listJSON)

	_, ctx = parseCLI(t, "show", "6137154", "--yaml")
	require.NoError(t, ctx.Run())
	assert.Equal(t, "6137154", shownID)
	assert.True(t, showYAML)

	_, ctx = parseCLI(t, "export")
	require.NoError(t, ctx.Run())
	assert.Equal(t, "libris.yaml", exportPath)
	assert.False(t, overwrite)

	_, ctx = parseCLI(t, "export", "-o", "out.json", "--overwrite")
	require.NoError(t, ctx.Run())
	assert.Equal(t, "out.json", exportPath)
	assert.True(t, overwrite)
}

func TestUpdateGlobalConfig(t *testing.T) {
	testutil.ResetConfig(t)
	config.SetDefaults()

	updateGlobalConfig(&CLI{DB: "/tmp/books.db", Browser: true, MetricsTextfile: "/tmp/libris.prom"})

	assert.Equal(t, "/tmp/books.db", config.DBFile)
	assert.True(t, config.Browser)
	assert.Equal(t, "/tmp/libris.prom", config.MetricsTextfile)
	assert.Equal(t, "/tmp/books.db", viper.GetString(config.KeyDBFile))
}

func TestUpdateGlobalConfigKeepsConfigValues(t *testing.T) {
	testutil.ResetConfig(t)
	config.SetDefaults()
	viper.Set(config.KeyDBFile, "/data/from-config.db")

	updateGlobalConfig(&CLI{})

	assert.Equal(t, "/data/from-config.db", config.DBFile)
	assert.False(t, config.Browser)
}

func TestInitConfigReadsEnvironment(t *testing.T) {
	env := testutil.NewTestEnv(t)
	testutil.ResetConfig(t)
	env.SetEnv("LIBRIS_LIBRARY_DBFILE", "/env/library.db")
	env.SetEnv("LIBRIS_CATALOG_RATELIMIT", "0.25")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(env.RootDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	initConfig()

	assert.Equal(t, "/env/library.db", config.DBFile)
	assert.Equal(t, 0.25, config.RateLimit)
	assert.Equal(t, "./covers", config.CoversDir)
}

func TestInitConfigReadsFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	testutil.ResetConfig(t)
	env.WriteFile("config.yaml", []byte("library:\n  dbfile: /yaml/library.db\ncovers:\n  maxwidth: 300\n"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(env.RootDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	initConfig()

	assert.Equal(t, "/yaml/library.db", config.DBFile)
	assert.Equal(t, 300, config.CoversMaxWidth)
}
