// internal/notify/audit.go
package notify

import (
	"context"
	"encoding/json"

	"donation-payments/internal/common/database"
	"donation-payments/internal/common/logger"
)

// Auditor mirrors delivery logs into Elasticsearch for dashboarding.
// Indexing is best-effort: Postgres remains the source of truth and an
// indexing failure never affects the dispatch outcome.
type Auditor struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewAuditor(es *database.ElasticsearchClient, index string, log logger.Logger) *Auditor {
	return &Auditor{es: es, index: index, logger: log}
}

func (a *Auditor) IndexLog(ctx context.Context, entry *Log) {
	body, err := json.Marshal(entry)
	if err != nil {
		a.logger.WithError(err).Warn("audit log marshal failed", map[string]interface{}{"log_id": entry.ID})
		return
	}

	if err := a.es.Index(ctx, a.index, entry.ID, body); err != nil {
		a.logger.WithError(err).Warn("audit log indexing failed", map[string]interface{}{
			"log_id": entry.ID,
			"index":  a.index,
		})
	}
}
