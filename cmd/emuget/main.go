package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ZebulonRouseFrantzich/emuget/internal/config"
)

// Version will be set at build time via -ldflags
var Version = "v0.0.1-alpha"

func main() {
	setupLogger()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version":
			fmt.Printf("emuget %s\n", Version)
			return
		case "get":
			if err := runGet(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	printUsage()
}

// setupLogger installs a text handler on stderr, at debug level when
// EMUGET_DEBUG is set.
func setupLogger() {
	level := slog.LevelInfo
	if os.Getenv(config.EnvDebug) != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func printUsage() {
	fmt.Println("emuget - managed downloads for emulators and firmware")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  emuget --version           Show version information")
	fmt.Println("  emuget get [options] <url> Download one or more URLs")
	fmt.Println()
	fmt.Println("Run 'emuget get --help' for download options.")
}
