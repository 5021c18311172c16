package dto

// AvatarUploadReq is the body of /me/avatar-upload-url.
type AvatarUploadReq struct {
	ContentType string `json:"contentType" binding:"required"`
}
