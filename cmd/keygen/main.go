// AngelaMos | 2026
// main.go

package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/carterperez-dev/sessionguard/internal/auth"
)

func main() {
	privatePath := flag.String("private", "keys/private.pem", "private key output path")
	publicPath := flag.String("public", "keys/public.pem", "public key output path")
	force := flag.Bool("force", false, "overwrite an existing private key")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if _, err := os.Stat(*privatePath); err == nil && !*force {
		logger.Error("private key already exists, pass -force to replace it",
			"path", *privatePath,
		)
		os.Exit(1)
	}

	if err := auth.GenerateKeyPair(*privatePath, *publicPath); err != nil {
		logger.Error("generate key pair", "error", err)
		os.Exit(1)
	}

	logger.Info("ES256 key pair written",
		"private", *privatePath,
		"public", *publicPath,
	)
}
