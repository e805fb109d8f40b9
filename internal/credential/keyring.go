// Package credentialはOSのキーチェーンへのトークン保存を提供します。
package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"todovault/internal/client"
)

const serviceName = "todovault"

// sessionKey はセッショントークンを保存するキーチェーン上のキーです。
const sessionKey = "session"

// openKeyring は設定済みのキーリングを開きます。
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/todovault/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("todovault-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringTokenStore はキーチェーンを使うclient.TokenStore実装です。
type KeyringTokenStore struct{}

// NewKeyringTokenStore はキーチェーンが利用可能か確認してから返します。
func NewKeyringTokenStore() (*KeyringTokenStore, error) {
	if _, err := openKeyring(); err != nil {
		return nil, err
	}
	return &KeyringTokenStore{}, nil
}

// Save はトークンペアをJSONにしてキーチェーンへ保存します。
func (k *KeyringTokenStore) Save(tokens client.StoredTokens) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encoding session tokens: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: sessionKey, Data: data}); err != nil {
		return fmt.Errorf("storing session tokens: %w", err)
	}
	return nil
}

// Load は保存済みのトークンペアを読み込みます。未保存ならnilを返します。
func (k *KeyringTokenStore) Load() (*client.StoredTokens, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	item, err := ring.Get(sessionKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session tokens: %w", err)
	}
	var tokens client.StoredTokens
	if err := json.Unmarshal(item.Data, &tokens); err != nil {
		return nil, fmt.Errorf("decoding session tokens: %w", err)
	}
	return &tokens, nil
}

// Clear は保存済みのトークンを削除します。元々無い場合もエラーにしません。
func (k *KeyringTokenStore) Clear() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Remove(sessionKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("clearing session tokens: %w", err)
	}
	return nil
}
