package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/cryptox"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/server/auth"
	"github.com/dmitrijs2005/gophqms/internal/server/config"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

type RegisterActorInput struct {
	UserName    string
	DisplayName string
	Password    []byte
	Scheme      string
}

// ActorService registers actors and issues their access tokens.
type ActorService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	log                         logging.Logger
	now                         Clock
}

func NewActorService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *ActorService {
	return &ActorService{
		db:                          db,
		repomanager:                 rm,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		log:                         log.With("module", "actors"),
		now:                         time.Now,
	}
}

// Register stores a new actor. The password is kept only as a verifier of
// the chosen scheme (argon2id unless told otherwise).
func (s *ActorService) Register(ctx context.Context, in RegisterActorInput) (*models.Actor, error) {
	defer common.WipeByteArray(in.Password)

	name := strings.TrimSpace(in.UserName)
	if name == "" {
		return nil, common.NewValidationError("userName", "is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, common.NewValidationError("password", "must be at least 8 characters")
	}
	scheme := cryptox.SchemeArgon2id
	if in.Scheme != "" {
		scheme = cryptox.Scheme(strings.ToLower(in.Scheme))
	}

	cred, err := cryptox.NewCredential(scheme, in.Password)
	if err != nil {
		if errors.Is(err, cryptox.ErrUnknownScheme) {
			return nil, common.NewValidationError("scheme", err.Error())
		}
		return nil, err
	}

	a, err := s.repomanager.Actors(s.db).Create(ctx, &models.Actor{
		UserName:    name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Scheme:      string(cred.Scheme),
		Salt:        cred.Salt,
		Verifier:    cred.Verifier,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "actor registered", "actor", a.ID, "user", a.UserName)
	return a, nil
}

// Login checks the password and returns an access token carrying the actor id.
func (s *ActorService) Login(ctx context.Context, userName string, password []byte) (string, error) {
	defer common.WipeByteArray(password)

	a, err := s.repomanager.Actors(s.db).GetByUserName(ctx, strings.TrimSpace(userName))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	ok, err := cryptox.Check(cryptox.Credential{Scheme: cryptox.Scheme(a.Scheme), Salt: a.Salt, Verifier: a.Verifier}, password)
	if err != nil {
		s.log.Error(ctx, "credential check failed", "actor", a.ID, "error", err)
		return "", common.ErrorUnauthorized
	}
	if !ok {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(a.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}
