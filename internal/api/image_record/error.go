package image_record

import (
	"Myagara/pkg/response"
	"net/http"
)

var (
	ErrRecordNotFound = response.NewKindError(http.StatusNotFound, response.KindNotFound, "image record not found")
	ErrInvalidQuery   = response.NewKindError(http.StatusBadRequest, response.KindInvalidInput, "invalid pagination parameters")
	ErrStoreImage     = response.NewKindError(http.StatusInternalServerError, response.KindInternal, "failed to store image")
	ErrCreateRecord   = response.NewKindError(http.StatusInternalServerError, response.KindInternal, "failed to create image record")
	ErrUpdateRecord   = response.NewKindError(http.StatusInternalServerError, response.KindInternal, "failed to update image record")
	ErrDeleteRecord   = response.NewKindError(http.StatusInternalServerError, response.KindInternal, "failed to delete image record")
)
