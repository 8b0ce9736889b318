package sequences

import "context"

type Repository interface {
	Next(ctx context.Context, key string) (int64, error)
}
