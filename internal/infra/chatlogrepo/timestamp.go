package chatlogrepo

import (
	"time"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/pkg/util"
)

// timestampFor keeps the original time of replayed drafts.
func timestampFor(draft chatlog.Draft, now util.Clock) time.Time {
	if !draft.OccurredAt.IsZero() {
		return draft.OccurredAt.UTC()
	}
	return now().UTC()
}
