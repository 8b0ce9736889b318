package services

import (
	"context"

	"github.com/dmitrijs2005/gophqms/internal/client/client"
	"github.com/dmitrijs2005/gophqms/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophqms/internal/common"
)

// SessionService keeps the access token between qmsctl invocations.
type SessionService struct {
	client client.Client
	meta   metadata.Repository
}

func NewSessionService(c client.Client, m metadata.Repository) *SessionService {
	return &SessionService{client: c, meta: m}
}

// Login authenticates against serverURL and stores the token. The password
// buffer is wiped before returning.
func (s *SessionService) Login(ctx context.Context, serverURL, userName string, password []byte) error {
	defer common.WipeByteArray(password)

	token, err := s.client.Login(ctx, userName, password)
	if err != nil {
		return err
	}

	for k, v := range map[string]string{
		metadata.KeyAccessToken: token,
		metadata.KeyUserName:    userName,
		metadata.KeyServerURL:   serverURL,
	} {
		if err := s.meta.Set(ctx, k, v); err != nil {
			return err
		}
	}
	s.client.SetAccessToken(token)
	return nil
}

// Restore hands a stored token to the client. It returns
// client.ErrNotLoggedIn when there is none.
func (s *SessionService) Restore(ctx context.Context) (userName string, err error) {
	token, ok, err := s.meta.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", client.ErrNotLoggedIn
	}
	userName, _, err = s.meta.Get(ctx, metadata.KeyUserName)
	if err != nil {
		return "", err
	}
	s.client.SetAccessToken(token)
	return userName, nil
}

// ServerURL returns the server the session was opened against, if any.
func (s *SessionService) ServerURL(ctx context.Context) (string, bool, error) {
	return s.meta.Get(ctx, metadata.KeyServerURL)
}

func (s *SessionService) Logout(ctx context.Context) error {
	s.client.SetAccessToken("")
	return s.meta.Delete(ctx, metadata.KeyAccessToken, metadata.KeyUserName, metadata.KeyServerURL)
}
