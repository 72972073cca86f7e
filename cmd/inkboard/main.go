package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"inkboard/internal/client"
	"inkboard/internal/config"
	"inkboard/internal/export"
	"inkboard/internal/store"
	"inkboard/pkg/interfaces"
)

// consoleEvents prints core notifications; a GUI would render panels
// from the same callbacks.
type consoleEvents struct{}

func (consoleEvents) StateChanged(state interfaces.SessionState) {
	log.Printf("session state: %s", state)
}

func (consoleEvents) FatalNotice(reason, message string) {
	log.Printf("session ended (%s): %s", reason, message)
}

func (consoleEvents) Warning(message string) {
	log.Printf("warning: %s", message)
}

func (consoleEvents) CountdownTick(secondsRemaining int) {
	if secondsRemaining < 0 {
		log.Printf("admin reconnected, countdown cleared")
		return
	}
	if secondsRemaining%60 == 0 || secondsRemaining <= 10 {
		log.Printf("session auto-ends in %ds unless the admin returns", secondsRemaining)
	}
}

func (consoleEvents) BoardUpdated() {}

func main() {
	create := flag.Bool("create", false, "create a new board")
	join := flag.String("join", "", "join an existing board by its 6-character code")
	token := flag.String("token", "", "membership token for rejoining")
	restore := flag.Bool("restore", false, "restore the previously persisted session")
	exportPath := flag.String("export", "", "write a PDF snapshot to this path on exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using environment variables")
	}

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	identityStore, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("open identity store: %v", err)
	}
	defer identityStore.Close()

	c := client.New(cfg, identityStore, consoleEvents{})

	switch {
	case *restore:
		err = c.Restore()
	case *create:
		err = c.CreateBoard()
	case *join != "":
		err = c.JoinBoard(strings.ToUpper(*join), *token)
	default:
		fmt.Fprintln(os.Stderr, "one of -create, -join CODE or -restore is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if *exportPath != "" {
		if err := export.PDF(*exportPath, c.Board()); err != nil {
			log.Printf("export pdf: %v", err)
		} else {
			log.Printf("board snapshot written to %s", *exportPath)
		}
	}

	c.Leave()
}
