package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"session-recorder/internal/config"
	"session-recorder/internal/network"
	"session-recorder/internal/protocol"
	"session-recorder/internal/region"
	"session-recorder/internal/sessionlog"
)

// runIndex: klasördeki *_log.txt dosyalarından results.json üretir.
func runIndex(args []string) int {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	dir := fs.String("dir", "recorded_materials", "Kayıt klasörü")
	_ = fs.Parse(args)

	entries, err := sessionlog.BuildIndex(*dir)
	if err != nil {
		fmt.Println("❌ Index error:", err)
		return 1
	}
	path, err := sessionlog.WriteIndex(*dir, entries)
	if err != nil {
		fmt.Println("❌ Index could not be written:", err)
		return 1
	}
	fmt.Printf("📄 Index written: %s (%d sessions)\n", path, len(entries))
	return 0
}

// runCtl: çalışan bir kaydediciye tek komut gönderir.
func runCtl(args []string) int {
	fs := flag.NewFlagSet("ctl", flag.ExitOnError)
	addr := fs.String("addr", net.JoinHostPort("127.0.0.1", strconv.Itoa(config.PortControl)), "Kaydedici adresi")
	password := fs.String("password", "", "Kontrol kanalı şifresi")
	useTLS := fs.Bool("tls", false, "TLS kullan")
	op := fs.String("op", protocol.OpStatus, "start | stop | annotate | region | status")
	text := fs.String("text", "", "Not metni (annotate)")
	source := fs.String("source", "", "Notun kaynağı (annotate)")
	x := fs.Int("x", 0, "Bölge sol kenarı (region)")
	y := fs.Int("y", 0, "Bölge üst kenarı (region)")
	w := fs.Int("w", 0, "Genişlik (region)")
	h := fs.Int("h", 0, "Yükseklik (region)")
	_ = fs.Parse(args)

	cmd := protocol.Command{Op: *op, Text: *text, Source: *source}
	if *op == protocol.OpRegion {
		cmd.Region = &region.Region{Left: *x, Top: *y, Width: *w, Height: *h}
	}
	if err := cmd.Validate(); err != nil {
		fmt.Println("❌", err)
		return 2
	}

	cfg := config.NewDefaultConfig()
	cfg.Control.Password = *password
	cfg.Control.TLS = *useTLS
	nm := network.NewManager(cfg, zap.NewNop())

	conn, err := nm.Dial(context.Background(), *addr)
	if err != nil {
		fmt.Println("❌ Connection error:", err)
		return 1
	}
	defer conn.Close()

	rep, err := protocol.Call(conn, cmd)
	if err != nil {
		fmt.Println("❌ Request failed:", err)
		return 1
	}
	printReply(rep)
	if rep.Err() != nil {
		return 1
	}
	return 0
}

func printReply(rep protocol.Reply) {
	if rep.OK {
		fmt.Printf("✅ %s\n", rep.State)
	} else {
		fmt.Printf("❌ %s (state: %s)\n", rep.Error, rep.State)
	}
	if s := rep.Session; s != nil {
		fmt.Printf("   Session: %s\n   Region:  %s\n   Video:   %s\n   Frames:  %d (skipped %d), notes %d\n",
			s.ID, s.Region, s.VideoPath, s.Frames, s.Skipped, s.Annotations)
	}
}
