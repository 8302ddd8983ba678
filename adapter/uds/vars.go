package uds

import (
	"context"
)

type CommandUseCase interface {
	Execute(ctx context.Context, line string) string
}

var (
	commandUseCase CommandUseCase
)

func SetCommandUseCase(uc CommandUseCase) {
	commandUseCase = uc
}
