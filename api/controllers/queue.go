package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/taxsync/api/responses"
	"github.com/angelmondragon/taxsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

type queueCounter interface {
	Counts(ctx context.Context) (map[enums.SyncStatus]int64, error)
}

// QueueStatus reports the number of tax sync records per status.
func QueueStatus(logg *logger.Logger, queue queueCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := queue.Counts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count queue records"))
			return
		}
		out := map[string]int64{}
		for _, status := range []enums.SyncStatus{
			enums.SyncStatusPending,
			enums.SyncStatusProcessing,
			enums.SyncStatusCommitted,
			enums.SyncStatusError,
		} {
			out[string(status)] = counts[status]
		}
		responses.WriteSuccess(w, out)
	}
}
