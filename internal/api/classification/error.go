package classification

import (
	"Myagara/pkg/response"
	"net/http"
)

var (
	ErrMissingImage        = response.NewKindError(http.StatusBadRequest, response.KindInvalidInput, "No image file provided")
	ErrUndecodableImage    = response.NewKindError(http.StatusInternalServerError, response.KindInvalidInput, "DecodeError: uploaded file is not a decodable image")
	ErrInferenceFailed     = response.NewKindError(http.StatusInternalServerError, response.KindInferenceFailure, "inference failed")
	ErrInternalServerError = response.NewKindError(http.StatusInternalServerError, response.KindInternal, "internal server error")
)
