// QuillDB SQL server: many connections, single database worker.
// One transaction at a time.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"QuillDB/logging"
	executor "QuillDB/query_executor"
	"QuillDB/server"
	storageengine "QuillDB/storage_engine"
	txn "QuillDB/transaction_manager"
)

var CLI struct {
	LogLevel  string `help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat string `help:"Log format." enum:"text,json" default:"text"`

	Serve struct {
		Port     int    `help:"TCP port to listen on." default:"7878"`
		DataRoot string `help:"Directory holding the databases." default:"./data" type:"path"`
	} `cmd:"" help:"Start the SQL server."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("quilldb"),
		kong.Description("Single-node SQL database with a paged storage core."),
		kong.UsageOnError(),
	)

	if err := logging.Setup(CLI.LogLevel, CLI.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch ctx.Command() {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	default:
		ctx.PrintUsage(false)
		os.Exit(1)
	}
}

func runServe() error {
	dbm, err := storageengine.NewDatabaseManager(CLI.Serve.DataRoot)
	if err != nil {
		return err
	}
	tm := txn.NewManager()
	exec := executor.New(dbm, tm)

	srv := server.New(fmt.Sprintf(":%d", CLI.Serve.Port), exec)
	if err := srv.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	srv.Stop()
	tm.Shutdown()
	dbm.ClearCurrentDB()
	return nil
}
