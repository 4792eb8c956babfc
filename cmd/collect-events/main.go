// Command collect-events summarises the request observability events that
// taskweb writes to its JSON log, reading the log from stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

func main() {
	var (
		outPath     string
		eventName   string
		eventDomain string
	)

	flag.StringVar(&outPath, "out", "", "path to write aggregated metrics JSON")
	flag.StringVar(&eventName, "event-name", requestEventName, "observability event name to collect")
	flag.StringVar(&eventDomain, "event-domain", requestEventDomain, "observability event domain to match")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "-out is required")
		os.Exit(2)
	}

	collector := newCollector(eventName, eventDomain)
	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadString('\n')
		if len(line) != 0 {
			collector.ingest(line)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "read logs: %v\n", err)
			os.Exit(1)
		}
	}

	summary := collector.summary()
	data, err := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write summary: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(summary.ShortString())
}
