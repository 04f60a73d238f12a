// ABOUTME: Remote control for a running sample trigger engine
// ABOUTME: Finds the engine over mDNS (or -server) and sends voice triggers
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maxmbed/sample-trig/internal/discovery"
	"github.com/maxmbed/sample-trig/internal/remote"
)

var (
	serverAddr = flag.String("server", "", "Engine address host:port (skip mDNS)")
	timeout    = flag.Duration("timeout", 10*time.Second, "How long to browse for an engine")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [voice|stop ...]\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Without arguments, reads voice numbers from stdin.\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	addr := *serverAddr
	if addr == "" {
		log.Printf("Browsing for %s...", discovery.ServiceType)
		mgr := discovery.NewManager(discovery.Config{})
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		ep, err := mgr.First(ctx)
		cancel()
		mgr.Stop()
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr = ep.Addr()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	client, err := remote.Dial(ctx, addr)
	cancel()
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer client.Close()

	voices, err := client.Voices()
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	log.Printf("Connected to %s (%d voices)", addr, voices)

	if flag.NArg() > 0 {
		for _, arg := range flag.Args() {
			if err := send(client, arg); err != nil {
				client.Close()
				log.Fatalf("%s: %v", arg, err)
			}
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" {
			return
		}
		if err := send(client, line); err != nil {
			log.Printf("%s: %v", line, err)
		}
	}
}

func send(client *remote.Client, arg string) error {
	if arg == "stop" {
		_, err := client.StopAll()
		return err
	}
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("expected a voice number or stop, got %q", arg)
	}
	_, err = client.Trigger(idx)
	return err
}
