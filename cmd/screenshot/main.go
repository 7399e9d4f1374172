// Command screenshot captures a full-page PNG of a web page.
//
//	screenshot <url> <output> [--wait=1] [--width=1920] [--height=1080]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/intility/dadp-mcp-go-live/logging"
	"github.com/intility/dadp-mcp-go-live/screenshot"
)

func main() {
	wait := flag.Int("wait", 1, "seconds to wait before the screenshot")
	width := flag.Int("width", screenshot.DefaultWidth, "viewport width")
	height := flag.Int("height", screenshot.DefaultHeight, "viewport height")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <url> <output> [flags]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	logger := logging.New(*logLevel, "text")

	opts := screenshot.DefaultOptions(flag.Arg(0), flag.Arg(1))
	opts.Wait = time.Duration(*wait) * time.Second
	opts.Width = *width
	opts.Height = *height

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("url", opts.URL).Info("Capturing screenshot")
	result, err := screenshot.Capture(ctx, opts, logger)
	if result != nil {
		report(result)
	}
	if err != nil {
		logger.WithError(err).Error("Screenshot failed")
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"output": opts.Output}).Info("Screenshot saved")
}

func report(result *screenshot.Result) {
	if len(result.ConsoleMessages) > 0 {
		fmt.Println("\nConsole messages:")
		for _, msg := range result.ConsoleMessages {
			fmt.Printf("  %s\n", msg)
		}
	}
	if len(result.PageErrors) > 0 {
		fmt.Println("\nPage errors:")
		for _, e := range result.PageErrors {
			fmt.Printf("  %s\n", e)
		}
	}
}
