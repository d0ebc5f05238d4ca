// Command newsdigest runs one refresh pass and prints the resulting cache to
// stdout instead of driving a display.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/logrusorgru/aurora"
	"golang.org/x/term"

	"newsboard/config"
	"newsboard/content"
	"newsboard/internal/assemble"
)

func main() {
	configFlag := flag.String("config", filepath.Join("data", "config"), "Config file or directory")
	headlinesFlag := flag.Bool("headlines", false, "Skip the model and print item titles")
	jsonFlag := flag.Bool("json", false, "Print the cache as JSON")
	timeoutFlag := flag.Duration("timeout", 2*time.Minute, "Overall deadline for the pass")
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.LUTC)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if *headlinesFlag {
		cfg.Transform.Mode = config.TransformHeadlines
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	pipe, err := assemble.Pipeline(cfg, nil, log.Default())
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeoutFlag)
	defer cancel()

	started := time.Now()
	cache, err := pipe.Run(ctx, assemble.Channels(cfg), nil)
	if err != nil {
		log.Fatalf("Pass abandoned: %v", err)
	}
	cache.CreatedAt = time.Now().UTC()

	if *jsonFlag {
		if err := writeJSON(os.Stdout, cache); err != nil {
			log.Fatal(err)
		}
		return
	}
	color := term.IsTerminal(int(os.Stdout.Fd()))
	writeText(os.Stdout, cache, color)
	log.Printf("Digest: %d channels, %s lines in %s", cache.Len(), humanize.Comma(int64(cache.TotalLines())), time.Since(started).Round(time.Millisecond))
}

type digestBlock struct {
	Channel string   `json:"channel"`
	Lines   []string `json:"lines"`
	Failed  bool     `json:"failed,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func writeJSON(w io.Writer, cache *content.Cache) error {
	blocks := make([]digestBlock, 0, cache.Len())
	for _, b := range cache.Blocks {
		blocks = append(blocks, digestBlock{Channel: b.Channel, Lines: b.Lines, Failed: b.Failed, Reason: b.Reason})
	}
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		CreatedAt time.Time     `json:"created_at"`
		Blocks    []digestBlock `json:"blocks"`
	}{cache.CreatedAt, blocks})
}

func writeText(w io.Writer, cache *content.Cache, color bool) {
	au := aurora.NewAurora(color)
	for i, b := range cache.Blocks {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := au.Bold(au.Cyan(b.Channel))
		if b.Failed {
			header = au.Bold(au.Yellow(b.Channel))
		}
		fmt.Fprintln(w, header)
		for _, line := range b.Lines {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
