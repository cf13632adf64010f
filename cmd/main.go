package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"document-qa/internal/assistant"
	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/nlsql"
	"document-qa/internal/rag"
	"document-qa/internal/router"
	"document-qa/internal/session"
	"document-qa/internal/tabular"
)

const configFilePath = "./configs/config.yaml"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Error running command")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docqa",
		Usage: "Ask questions about uploaded documents and spreadsheets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   configFilePath,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides log_level in config",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "upload",
				Usage:  "Upload a document (" + strings.Join(router.SupportedExtensions(), ", ") + ")",
				Action: uploadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Name to register the file under (defaults to the file name)",
					},
				},
			},
			{
				Name:   "ask",
				Usage:  "Ask a question about the last uploaded file",
				Action: askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Question to be answered",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Upload this file before asking",
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: "Write the rows of a SQL answer to this xlsx file",
					},
				},
			},
			{
				Name:   "chat",
				Usage:  "Ask questions interactively; an empty line or 'exit' quits",
				Action: chatCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Upload this file before the first question",
					},
				},
			},
			{
				Name:   "documents",
				Usage:  "List uploaded documents",
				Action: documentsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the document records, chunks included, as JSON",
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Delete every stored chunk and forget uploaded documents",
				Action: resetCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	level := c.String("log-level")
	if level == "" {
		level = "info"
	}
	return setLogLevel(level)
}

func setLogLevel(s string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// application holds the stores and services shared by every command
type application struct {
	assistant *assistant.Assistant
	vectors   rag.VectorStore
	tables    *tabular.Store
}

func openApplication(c *cli.Context) (*application, error) {
	ctx := c.Context
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if !c.IsSet("log-level") {
		if err := setLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	log.Debug().Interface("config", redacted(cfg)).Msg("Loaded config")

	sess, err := session.Load(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}
	generator, err := llmservice.NewGenerator(&cfg.InferenceLLM, cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("error initializing generator: %w", err)
	}

	vectors, err := newVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tables, err := tabular.OpenStore(cfg.Tabular.Path, cfg.Database.Debug)
	if err != nil {
		vectors.Close()
		return nil, err
	}

	r := rag.NewRAG(vectors, embedding.NewService(embedder, cfg.Retry), generator, sess, cfg.RAG)
	return &application{
		assistant: assistant.New(r, tables, nlsql.NewRouter(generator), sess),
		vectors:   vectors,
		tables:    tables,
	}, nil
}

func newVectorStore(ctx context.Context, cfg *config.Config) (rag.VectorStore, error) {
	switch cfg.VectorStore.Backend {
	case config.BackendPgvector:
		store, err := db.NewPointStore(ctx, &cfg.Database, cfg.VectorStore.VectorSize)
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		return store, nil
	default:
		if !cfg.VectorStore.InMemory {
			if err := helper.CreateFolder(cfg.VectorStore.Path); err != nil {
				return nil, err
			}
		}
		store, err := chromemdb.NewVectorDBManager(chromemdb.Options{
			Path:          cfg.VectorStore.Path,
			Collection:    cfg.RAG.Collection,
			InMemory:      cfg.VectorStore.InMemory,
			Compress:      cfg.VectorStore.Compress,
			EncryptionKey: cfg.VectorStore.EncryptionKey,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating vector database manager: %w", err)
		}
		return store, nil
	}
}

func (a *application) Close() {
	if err := a.vectors.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing vector store")
	}
	if err := a.tables.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing table store")
	}
}

// redacted hides keys and passwords before the config is logged
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	out.EmbedLLM.Key = mask(out.EmbedLLM.Key)
	out.InferenceLLM.Key = mask(out.InferenceLLM.Key)
	out.VectorStore.EncryptionKey = mask(out.VectorStore.EncryptionKey)
	out.Database.Password = mask(out.Database.Password)
	return out
}

func uploadCommand(c *cli.Context) error {
	app, err := openApplication(c)
	if err != nil {
		return err
	}
	defer app.Close()

	upload(c, app, c.String("file"), c.String("name"))
	return nil
}

func askCommand(c *cli.Context) error {
	app, err := openApplication(c)
	if err != nil {
		return err
	}
	defer app.Close()

	if file := c.String("file"); file != "" {
		if !upload(c, app, file, "") {
			return nil
		}
	}
	ask(c, app, c.String("query"), c.String("export"))
	return nil
}

func chatCommand(c *cli.Context) error {
	app, err := openApplication(c)
	if err != nil {
		return err
	}
	defer app.Close()

	if file := c.String("file"); file != "" {
		if !upload(c, app, file, "") {
			return nil
		}
	}

	w := c.App.Writer
	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" || strings.EqualFold(query, "exit") {
			break
		}
		ask(c, app, query, "")
	}
	return scanner.Err()
}

func documentsCommand(c *cli.Context) error {
	app, err := openApplication(c)
	if err != nil {
		return err
	}
	defer app.Close()

	w := c.App.Writer
	docs := app.assistant.Documents()
	if c.Bool("json") {
		if docs == nil {
			docs = []models.DocumentRecord{}
		}
		helper.PrettyPrint(w, docs)
		return nil
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents uploaded.")
		return nil
	}
	current, _ := app.assistant.Current()
	for _, d := range docs {
		marker := " "
		if d.ID == current.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%d chunks\n", marker, d.Name, d.ID, len(d.Chunks))
	}
	return nil
}

func resetCommand(c *cli.Context) error {
	app, err := openApplication(c)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.assistant.Reset(c.Context); err != nil {
		printError(c, err)
		return nil
	}
	fmt.Fprintln(c.App.Writer, "Knowledge base cleared.")
	return nil
}

// upload reports the outcome on the command output and whether it succeeded
func upload(c *cli.Context, app *application, path, name string) bool {
	res, err := app.assistant.Upload(c.Context, path, name)
	if err != nil {
		printError(c, err)
		return false
	}

	w := c.App.Writer
	switch {
	case res.Skipped:
		fmt.Fprintf(w, "Document '%s' already exists in the knowledge base. Skipping upload.\n", res.Document.Name)
	case res.Document != nil:
		fmt.Fprintf(w, "Uploaded '%s' (%d chunks).\n", res.Document.Name, len(res.Document.Chunks))
	case res.Table != nil:
		fmt.Fprintf(w, "Loaded table '%s' (%d rows).\n", res.Table.TableName, res.Rows)
		for _, col := range res.Table.Columns {
			fmt.Fprintf(w, "  %s\t%s\n", col.Name, col.Type)
		}
	}
	return true
}

func ask(c *cli.Context, app *application, query, export string) {
	ans, err := app.assistant.Ask(c.Context, query)
	if err != nil {
		printError(c, err)
		return
	}

	w := c.App.Writer
	switch ans.Pipeline {
	case models.PipelineUnstructured:
		log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Fprintf(w, "%s\n\n", ans.Source)
	case models.PipelineStructured:
		log.Info().Msg("Function Called: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Fprintf(w, "%s\n\n", ans.FunctionName)
		if ans.SQL != "" {
			log.Info().Msg("SQL: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Fprintf(w, "%s\n\n", ans.SQL)
		}
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(w, "%s\n\n", ans.Text)

	if export == "" {
		return
	}
	if ans.Result == nil || len(ans.Result.Columns) == 0 {
		printError(c, errors.New("the answer has no rows to export"))
		return
	}
	if err := tabular.ExportXLSX(ans.Result, export); err != nil {
		printError(c, err)
		return
	}
	fmt.Fprintf(w, "Exported %d rows to %s\n", len(ans.Result.Rows), export)
}

func printError(c *cli.Context, err error) {
	fmt.Fprintf(c.App.Writer, "Error: %v\n", err)
	var re *nlsql.RoutingError
	if errors.As(err, &re) {
		fmt.Fprintf(c.App.Writer, "Raw Response:\n%s\n", re.Raw)
	}
}
