package storage

import (
	"context"
	"fmt"
)

var factoryFuncs = map[string]func(ctx context.Context, path string) (Storage, error){}

func RegisterFactory(storageType string, fn func(ctx context.Context, path string) (Storage, error)) {
	factoryFuncs[storageType] = fn
}

func New(ctx context.Context, storageType, path string) (Storage, error) {
	if storageType == "" {
		storageType = "sqlite"
	}

	fn, exists := factoryFuncs[storageType]
	if !exists {
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}

	return fn(ctx, path)
}
