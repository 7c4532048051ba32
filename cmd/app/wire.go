//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/user-accounts/internal/bootstrap"
	"github.com/yanqian/user-accounts/internal/domain/account"
	"github.com/yanqian/user-accounts/internal/domain/avatar"
	"github.com/yanqian/user-accounts/internal/infra/config"
	httpiface "github.com/yanqian/user-accounts/internal/interface/http"
	"github.com/yanqian/user-accounts/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideAccountConfig,
		provideHasher,
		provideTokenIssuer,
		provideTranscoder,
		provideAvatarPolicy,
		provideAccountRepository,
		provideAvatarStore,
		provideRateLimiter,
		account.NewService,
		wire.Bind(new(account.Hasher), new(*account.BcryptHasher)),
		wire.Bind(new(account.TokenIssuer), new(*account.JWTIssuer)),
		wire.Bind(new(account.Transcoder), new(*avatar.Transcoder)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
