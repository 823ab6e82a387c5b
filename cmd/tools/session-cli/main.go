package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/annel0/geocoin/internal/auth"
	"github.com/annel0/geocoin/internal/config"
	"github.com/annel0/geocoin/internal/session"
	"github.com/annel0/geocoin/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (or GEOCOIN_CONFIG)")
		command    = flag.String("cmd", "show", "Command: show, reset, export, token, secret")
		player     = flag.String("player", "player", "Player name for -cmd token")
		timeout    = flag.Duration("timeout", 10*time.Second, "Storage operation timeout")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	switch *command {
	case "token", "secret":
		if err := authCommand(cfg, *command, *player); err != nil {
			log.Fatalf("❌ %v", err)
		}
		return
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	persistence := session.NewPersistence(store, cfg.Game.SessionKey)

	switch *command {
	case "show":
		err = showSession(ctx, persistence)
	case "reset":
		err = persistence.Clear(ctx)
		if err == nil {
			fmt.Printf("🗑️  Session %q deleted\n", persistence.Key())
		}
	case "export":
		err = exportSession(ctx, persistence)
	default:
		err = fmt.Errorf("unknown command %q (show, reset, export, token, secret)", *command)
	}

	if err != nil {
		store.Close()
		log.Fatalf("❌ %v", err)
	}
}

func showSession(ctx context.Context, p *session.Persistence) error {
	raw, err := p.Raw(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Printf("No session stored under %q\n", p.Key())
		return nil
	}
	if err != nil {
		return err
	}

	state, err := session.Decode(raw)
	if err != nil {
		fmt.Printf("⚠️  Session %q is malformed and will be replaced on next start: %v\n", p.Key(), err)
		return nil
	}

	fmt.Printf("Session %q (%d bytes)\n", p.Key(), len(raw))
	fmt.Printf("  Position:  %.6f, %.6f\n", state.Position.Lat, state.Position.Lng)
	fmt.Printf("  Path:      %d points\n", len(state.Path))
	fmt.Printf("  Coins:     %d\n", len(state.Inventory))
	for idx := len(state.Inventory) - 1; idx >= 0; idx-- {
		fmt.Printf("    %s\n", state.Inventory[idx])
	}
	fmt.Printf("  Caches:    %d modified\n", state.Directory.Len())
	for _, entry := range state.Directory.Entries() {
		var tokens []json.RawMessage
		_ = json.Unmarshal([]byte(entry.Value), &tokens)
		fmt.Printf("    %-12s %d coins\n", entry.Key, len(tokens))
	}
	return nil
}

func exportSession(ctx context.Context, p *session.Persistence) error {
	raw, err := p.Raw(ctx)
	if err != nil {
		return fmt.Errorf("read session %q: %w", p.Key(), err)
	}
	_, err = os.Stdout.Write(append(raw, '\n'))
	return err
}

// authCommand выпускает токен доступа к API или новый ключ подписи
func authCommand(cfg *config.Config, command, player string) error {
	if command == "secret" {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Println(secret)
		return nil
	}

	if cfg.Server.AuthSecret == "" {
		return fmt.Errorf("server.auth_secret is not configured (GEOCOIN_AUTH_SECRET)")
	}
	signer, err := auth.NewSigner(cfg.Server.AuthSecret, cfg.Server.TokenTTL)
	if err != nil {
		return err
	}
	token, err := signer.Issue(player)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
