package logging

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const LogTimeFormat = "2006-01-02T15:04:05.000"

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	if runtime.GOOS == "windows" {
		return zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: LogTimeFormat}
	}
	return zerolog.ConsoleWriter{Out: out, NoColor: false, TimeFormat: LogTimeFormat}
}

// ConsoleAndFileLog points the global logger at the console and appends to
// filename. The returned closer releases the file. An empty filename logs to
// the console only.
func ConsoleAndFileLog(filename string, debug bool) (io.Closer, error) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	console := consoleWriter(os.Stderr)
	if filename == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return io.NopCloser(nil), nil
	}

	logFile, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return io.NopCloser(nil), fmt.Errorf("open log file: %w", err)
	}

	mw := io.MultiWriter(logFile, console)
	log.Logger = zerolog.New(mw).With().Timestamp().Logger()
	return logFile, nil
}
