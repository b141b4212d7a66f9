package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/janerist/deploy/pkg/server"
)

// A local SSH host that runs every exec request with /bin/sh, for
// rehearsing a deploy without touching the real machine.
func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	})))

	port := os.Getenv("PORT")

	if port == "" {
		port = "2222"
	}

	hostKey, err := server.ReadHostKey(os.Getenv("HOST_KEY"))

	if err != nil {
		panic(err)
	}

	s, err := server.NewServer(server.Config{
		Addr: ":" + port,

		Password: os.Getenv("PASSWORD"),
		HostKey:  hostKey,
	}, &server.ShellHandler{
		Dir: os.Getenv("ROOT"),
	})

	if err != nil {
		panic(err)
	}

	panic(s.ListenAndServe())
}
