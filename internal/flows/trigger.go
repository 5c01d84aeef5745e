package flows

import (
	"context"

	"github.com/shaiso/dataflows/internal/domain"
)

// Trigger — возможность запускать flows во внешнем планировщике.
type Trigger interface {
	// Start запускает run flow flowName в проекте project.
	Start(ctx context.Context, flowName, project string) (domain.RunHandle, error)

	// Await блокируется до финального статуса run.
	// Статус, отличный от SUCCEEDED, возвращается как ошибка.
	Await(ctx context.Context, handle domain.RunHandle) (domain.RunResult, error)
}
