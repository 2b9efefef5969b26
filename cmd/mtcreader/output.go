package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/dbehnke/mtcreader/internal/engine"
)

// printEvents writes one line per timecode event to out and logs info and
// error events
func printEvents(ctx context.Context, events <-chan engine.Event, out io.Writer, logger *log.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case engine.EventTimecode:
				line, err := formatTimecode(ev)
				if err != nil {
					logger.Printf("Failed to encode sample: %v", err)
					continue
				}
				fmt.Fprintln(out, line)
			case engine.EventInfo:
				logger.Printf("%s", ev.Message)
			case engine.EventError:
				logger.Printf("Error: %s", ev.Message)
			}
		}
	}
}

// formatTimecode renders a sample as JSON, or the raw frame as hex when the
// engine publishes bytes only
func formatTimecode(ev engine.Event) (string, error) {
	if ev.Sample == nil {
		return fmt.Sprintf("% X", ev.Raw.Bytes()), nil
	}
	data, err := ev.Sample.JSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
