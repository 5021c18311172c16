package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/apperr"
)

// avatarTypes maps accepted avatar content types to file extensions.
var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Me returns the current user.
func (u *AuthUsecase) Me(ctx context.Context, userID uint) (*entity.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil, apperr.Wrap(ErrUserNotFound, apperr.CodeNotFound, "User not found")
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile applies the editable profile fields of the current user.
func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID uint, p entity.ProfilePatch) (*entity.User, error) {
	return u.users.UpdateProfile(ctx, userID, p)
}

// AvatarUpload is a presigned PUT for a new avatar object.
type AvatarUpload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// AvatarUploadURL presigns an upload for the current user's avatar. The
// client PUTs the image to URL and then saves Key through UpdateProfile.
func (u *AuthUsecase) AvatarUploadURL(ctx context.Context, userID uint, contentType string) (*AvatarUpload, error) {
	if u.avatars == nil {
		return nil, apperr.Wrap(ErrStorageDisabled, apperr.CodeUnavailable, "Avatar storage is not configured")
	}
	ext, ok := avatarTypes[contentType]
	if !ok {
		return nil, apperr.Validation("contentType must be one of image/png, image/jpeg, image/webp, image/gif")
	}

	key := fmt.Sprintf("avatars/%d/%s/%s%s", userID, u.now().UTC().Format(time.DateOnly), uuid.NewString(), ext)
	url, err := u.avatars.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("presign avatar upload: %w", err))
	}
	return &AvatarUpload{Key: key, URL: url}, nil
}
