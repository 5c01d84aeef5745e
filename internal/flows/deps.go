package flows

import (
	"time"

	"github.com/shaiso/dataflows/internal/config"
	"github.com/shaiso/dataflows/internal/featurestore"
	"github.com/shaiso/dataflows/internal/telemetry"
	"github.com/shaiso/dataflows/internal/warehouse"
)

// Deps — внешние зависимости flows.
//
// Любая зависимость может быть nil: реестр всё равно собирается
// (например, для `flow list`), а шаг, которому она нужна, падает
// с ErrNotConfigured.
type Deps struct {
	Config    *config.Config
	Warehouse warehouse.Querier
	Store     featurestore.Writer
	Trigger   Trigger
	Metrics   *telemetry.Metrics

	// Now — источник времени для unloaded_at. По умолчанию time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) project() string {
	if d.Config == nil {
		return ""
	}
	return d.Config.Scheduler.Project
}

// Default собирает реестр со всеми flows.
func Default(deps Deps) (*Registry, error) {
	if deps.Config == nil {
		deps.Config = &config.Config{}
	}

	r := NewRegistry()
	for _, f := range []*Flow{
		NewDBTOrchestration(deps),
		NewPocketHits(deps),
		NewCuratedCandidates(deps),
	} {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}
