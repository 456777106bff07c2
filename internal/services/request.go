package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/tastelab-backend/internal/platform/apierr"
	"github.com/yungbote/tastelab-backend/internal/platform/ctxutil"
)

func requestUserID(ctx context.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.Unauthenticated(nil)
	}
	return rd.UserID, nil
}
