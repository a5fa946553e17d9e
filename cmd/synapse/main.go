// Synapse.IA orchestrator
//
// Chat front end and gRPC server for the procurement-document pipeline.
//
// Usage:
//
//	synapse chat                            # Terminal conversation
//	synapse serve --addr :50051             # ConversationService + /metrics
//	synapse stages --pipeline legacy        # List the registry
//	synapse decode < reply.txt              # Decode one model reply
package main

import (
	"fmt"
	"os"
	"runtime"
)

// Version information
const (
	Version   = "1.0.0"
	BuildTime = "dev"
	appName   = "synapse"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd(os.Getenv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
