// Command server runs the QMS record integrity API: canonical payloads,
// signature artifacts, workflow transitions and e-sign gates over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophqms/internal/server"
	"github.com/dmitrijs2005/gophqms/internal/server/config"
)

func main() {
	app, err := server.NewApp(config.LoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}

	// app.Run installs its own SIGINT/SIGTERM handling
	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}
