package cmd

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/libris/cmd/add"
	"github.com/lepinkainen/libris/cmd/library"
	"github.com/lepinkainen/libris/internal/config"
	liberrors "github.com/lepinkainen/libris/internal/errors"
)

var (
	runAdd        = add.Run
	listBooks     = library.List
	showBook      = library.Show
	exportLibrary = library.Export
)

// CLI represents the complete command structure for the libris application
type CLI struct {
	// Global flags
	DB              string `help:"Path to the library SQLite database (default from config: library.dbfile)"`
	Verbose         bool   `short:"v" help:"Enable debug logging"`
	Browser         bool   `help:"Fetch catalog pages through headless Chrome"`
	MetricsTextfile string `help:"Write Prometheus metrics to this file after the command"`

	Add    AddCmd    `cmd:"" help:"Look up a book on Goodreads and add it to the library"`
	List   ListCmd   `cmd:"" help:"List books in the library"`
	Show   ShowCmd   `cmd:"" help:"Show one book from the library"`
	Export ExportCmd `cmd:"" help:"Export the library to a YAML or JSON file"`
}

// AddCmd represents the add command
type AddCmd struct {
	ID          string `name:"id" help:"Goodreads book id"`
	ISBN        string `name:"isbn" help:"ISBN-10, ISBN-13 or ASIN"`
	Title       string `short:"t" help:"Book title"`
	Author      string `short:"a" help:"Author name, narrows a title search"`
	File        string `short:"f" help:"EPUB file to read the title and author from"`
	Interactive bool   `short:"i" help:"Choose between matching search results"`
	Covers      bool   `help:"Download the cover image"`
}

// ListCmd represents the list command
type ListCmd struct {
	JSON bool `help:"Print JSON instead of a table"`
}

// ShowCmd represents the show command
type ShowCmd struct {
	GoodreadsID string `arg:"" name:"goodreads-id" help:"Goodreads book id"`
	YAML        bool   `name:"yaml" help:"Print YAML"`
}

// ExportCmd represents the export command
type ExportCmd struct {
	Output    string `short:"o" help:"Output file (.yaml or .json)" default:"libris.yaml"`
	Overwrite bool   `help:"Replace an existing output file"`
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("libris"),
		kong.Description("Add books to a local library using Goodreads metadata."),
		kong.UsageOnError(),
	)

	initLogging(cli.Verbose)
	initConfig()
	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		if liberrors.IsStopProcessingError(err) {
			slog.Info("Stopped", "reason", err)
			return
		}
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()

	viper.SetEnvPrefix("LIBRIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Debug("Config file not found, using defaults")
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	config.InitConfig()
}

func updateGlobalConfig(cli *CLI) {
	if cli.DB != "" {
		viper.Set(config.KeyDBFile, cli.DB)
	}
	if cli.Browser {
		viper.Set(config.KeyBrowser, true)
	}
	if cli.MetricsTextfile != "" {
		viper.Set(config.KeyMetricsTextfile, cli.MetricsTextfile)
	}
	config.InitConfig()
}

// Run methods for each command

func (a *AddCmd) Run() error {
	return runAdd(add.Options{
		ID:          a.ID,
		ISBN:        a.ISBN,
		Title:       a.Title,
		Author:      a.Author,
		File:        a.File,
		Interactive: a.Interactive,
		Covers:      a.Covers,
	})
}

func (l *ListCmd) Run() error {
	return listBooks(l.JSON)
}

func (s *ShowCmd) Run() error {
	return showBook(s.GoodreadsID, s.YAML)
}

func (e *ExportCmd) Run() error {
	return exportLibrary(e.Output, e.Overwrite)
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
