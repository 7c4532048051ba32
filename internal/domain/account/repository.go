package account

import "context"

// Repository abstracts account persistence. Implementations never hash or
// validate; they store what they are given.
type Repository interface {
	Create(ctx context.Context, acc NewAccount) (Account, error)
	GetByID(ctx context.Context, id int64) (Account, bool, error)
	GetByEmail(ctx context.Context, email string) (Account, bool, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, acc Account) (Account, error)
	AppendToken(ctx context.Context, id int64, token string) (Account, error)
	RemoveToken(ctx context.Context, id int64, token string) (Account, error)
	ClearTokens(ctx context.Context, id int64) (Account, error)
	Delete(ctx context.Context, id int64) (bool, error)
	AvatarStore
}

// AvatarStore persists transcoded avatar images keyed by account.
type AvatarStore interface {
	PutAvatar(ctx context.Context, id int64, image []byte) error
	GetAvatar(ctx context.Context, id int64) ([]byte, bool, error)
	DeleteAvatar(ctx context.Context, id int64) error
}

// Transcoder converts uploaded image bytes into the stored avatar format.
type Transcoder interface {
	Transcode(raw []byte) ([]byte, error)
}
