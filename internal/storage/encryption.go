package storage

import (
	"context"
	"fmt"
	"time"
)

// TokenCipher is the subset of crypto.TokenCipher the store needs.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// EncryptedStore encrypts refresh and access tokens before they reach the
// wrapped store and decrypts them on the way out. Everything else passes through.
type EncryptedStore struct {
	Store
	cipher TokenCipher
}

func NewEncryptedStore(inner Store, cipher TokenCipher) *EncryptedStore {
	return &EncryptedStore{Store: inner, cipher: cipher}
}

func (s *EncryptedStore) LoadCredentialWithToken(ctx context.Context, externalUserID string) (*Credential, error) {
	c, err := s.Store.LoadCredentialWithToken(ctx, externalUserID)
	if err != nil {
		return nil, err
	}
	if err := s.decrypt(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *EncryptedStore) SaveCredential(ctx context.Context, c *Credential) error {
	enc := *c
	var err error
	if enc.RefreshToken, err = s.cipher.Encrypt(c.RefreshToken); err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	if enc.AccessToken, err = s.cipher.Encrypt(c.AccessToken); err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	if err := s.Store.SaveCredential(ctx, &enc); err != nil {
		return err
	}
	c.CreatedAt, c.UpdatedAt = enc.CreatedAt, enc.UpdatedAt
	return nil
}

func (s *EncryptedStore) UpdateAccessToken(ctx context.Context, externalUserID, token string, expiry time.Time) error {
	enc, err := s.cipher.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	return s.Store.UpdateAccessToken(ctx, externalUserID, enc, expiry)
}

func (s *EncryptedStore) UpdateRefreshToken(ctx context.Context, externalUserID, token string) error {
	enc, err := s.cipher.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	return s.Store.UpdateRefreshToken(ctx, externalUserID, enc)
}

func (s *EncryptedStore) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*Credential, error) {
	creds, err := s.Store.ListExpiring(ctx, before, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range creds {
		if err := s.decrypt(c); err != nil {
			return nil, err
		}
	}
	return creds, nil
}

func (s *EncryptedStore) decrypt(c *Credential) error {
	var err error
	if c.RefreshToken, err = s.cipher.Decrypt(c.RefreshToken); err != nil {
		return fmt.Errorf("decrypt refresh token for %s: %w", c.ExternalUserID, err)
	}
	if c.AccessToken, err = s.cipher.Decrypt(c.AccessToken); err != nil {
		return fmt.Errorf("decrypt access token for %s: %w", c.ExternalUserID, err)
	}
	return nil
}
