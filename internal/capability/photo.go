package capability

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"jarvis-webhook/internal/domain"
)

const (
	DefaultPhotoDescription = "사용자가 업로드한 사진"

	photoSaved        = "사진이 성공적으로 저장되었습니다!"
	photoUploadFailed = "사진 업로드에 실패했습니다. 다시 시도해주세요!"
)

// Photo saves uploaded photos and finds them again by upload day.
type Photo struct {
	store PhotoStore
	rt    Runtime
}

func NewPhoto(store PhotoStore, rt Runtime) (*Photo, error) {
	if store == nil {
		return nil, errors.New("capability: photo store must not be nil")
	}
	return &Photo{store: store, rt: rt.WithDefaults()}, nil
}

// Upload stores the photo and returns the confirmation shown to the user.
// Failures are logged and reported with the retry message, never as errors.
func (p *Photo) Upload(ctx context.Context, userID string, params domain.PhotoParams) string {
	logger := p.rt.Logger.With(zap.String("user_id", userID))
	if strings.TrimSpace(params.PhotoURL) == "" {
		logger.Warn("photo upload without url")
		return photoUploadFailed
	}
	desc := strings.TrimSpace(params.Description)
	if desc == "" {
		desc = DefaultPhotoDescription
	}

	callCtx, cancel := p.rt.call(ctx)
	defer cancel()
	err := p.store.PutPhoto(callCtx, domain.PhotoRecord{
		UserID:      userID,
		PhotoURL:    params.PhotoURL,
		Description: desc,
		Timestamp:   p.rt.Now(),
	})
	if err != nil {
		logger.Warn("photo upload failed", zap.Error(domain.Upstream("photo_store", err)))
		return photoUploadFailed
	}
	return photoSaved
}

// Find returns the newest photo uploaded on date. No photo is an EmptyResult
// error.
func (p *Photo) Find(ctx context.Context, userID, date string) (domain.PhotoRecord, error) {
	callCtx, cancel := p.rt.call(ctx)
	defer cancel()
	photos, err := p.store.FindPhotosByDate(callCtx, userID, date)
	if err != nil {
		return domain.PhotoRecord{}, domain.Upstream("photo_lookup", err)
	}
	if len(photos) == 0 {
		return domain.PhotoRecord{}, domain.NewError(domain.ErrorEmptyResult, "no_photo", nil)
	}
	newest := photos[0]
	for _, ph := range photos[1:] {
		if ph.Timestamp.After(newest.Timestamp) {
			newest = ph
		}
	}
	return newest, nil
}
