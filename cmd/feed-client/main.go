package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"releasehub/internal/logging"
	"releasehub/internal/pacer"
)

// Prints feed events. -addr takes host:port for the TCP feed or a ws:// URL
// for the websocket one. Reconnects until interrupted.
func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP feed address or ws:// URL")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for ctx.Err() == nil {
		var err error
		if strings.HasPrefix(*addr, "ws://") || strings.HasPrefix(*addr, "wss://") {
			err = runWS(ctx, *addr, *pretty)
		} else {
			err = runTCP(ctx, *addr, *pretty)
		}
		if ctx.Err() != nil {
			return
		}
		logging.Warn().Err(err).Str("addr", *addr).Msg("disconnected, reconnecting")
		_ = pacer.Sleep(ctx, time.Second)
	}
}

func printEvent(line []byte, pretty bool) {
	if !pretty {
		fmt.Println(string(line))
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		fmt.Println(string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(b))
}

func runTCP(ctx context.Context, addr string, pretty bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	logging.Info().Str("addr", addr).Msg("connected")

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		printEvent(sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("feed closed")
}

func runWS(ctx context.Context, url string, pretty bool) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer ws.Close()
	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()
	logging.Info().Str("url", url).Msg("connected")

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		for _, line := range strings.Split(strings.TrimSpace(string(msg)), "\n") {
			printEvent([]byte(line), pretty)
		}
	}
}
