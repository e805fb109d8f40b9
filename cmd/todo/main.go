package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"todovault/internal/client"
	"todovault/internal/credential"
	"todovault/internal/tui"
)

func main() {
	cfg, err := client.LoadConfig(client.DefaultConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	// キーチェーンが使えない環境ではメモリ保存に切り替える（再起動で要ログイン）
	var tokens client.TokenStore = &client.MemoryTokenStore{}
	if cfg.UseKeyring {
		if ks, err := credential.NewKeyringTokenStore(); err == nil {
			tokens = ks
		} else {
			fmt.Fprintf(os.Stderr, "warning: keyring unavailable, tokens will not persist: %v\n", err)
		}
	}

	session := client.NewSession(cfg.ServerURL, tokens)
	// 前回のセッションが残っていれば復元する。失敗してもゲストモードで続行
	_, _ = session.Resume(context.Background())

	newStore := func(authenticated bool) (client.TodoStore, error) {
		if authenticated {
			return client.NewRemoteStore(cfg.ServerURL, session), nil
		}
		return client.NewLocalStore(cfg.GuestDataPath)
	}

	store, err := newStore(session.State() == client.StateAuthenticated)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening guest data: %v\n", err)
		os.Exit(1)
	}

	app := tui.NewApp(session, store, newStore)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
