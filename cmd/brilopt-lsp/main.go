// SPDX-License-Identifier: Apache-2.0
package main

import (
	"log"
	"os"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"brilopt/internal/lsp"
)

const lsName = "brilopt" // Name identifier for the language server

var (
	version = "0.0.1"        // Server version
	handler protocol.Handler // Protocol handler instance (wired up below)
)

func main() {
	// Configure debug logging (1 = debug level, nil = default logger)
	commonlog.Configure(1, nil)

	irHandler := lsp.NewHandler()

	// Wire up the handler with the LSP method implementations
	handler = protocol.Handler{
		Initialize:            irHandler.Initialize,
		Initialized:           irHandler.Initialized,
		Shutdown:              irHandler.Shutdown,
		SetTrace:              irHandler.SetTrace,
		TextDocumentDidOpen:   irHandler.TextDocumentDidOpen,
		TextDocumentDidChange: irHandler.TextDocumentDidChange,
		TextDocumentDidClose:  irHandler.TextDocumentDidClose,
	}

	srv := server.NewServer(&handler, lsName, false)
	if err := srv.RunStdio(); err != nil {
		log.Println("Error starting brilopt LSP server:", err)
		os.Exit(1)
	}
}
