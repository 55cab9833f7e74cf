package middleware

import (
	"encoding/json"
	"mime"
	"net/http"

	"rescuehub/errs"
	"rescuehub/utils"
)

// ValidateJSON decodes a JSON body into dst and runs its validate tags. On
// failure the response has already been written.
func ValidateJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "application/json" {
		utils.WriteJSON(w, http.StatusUnsupportedMediaType, utils.APIResponse{
			Success: false,
			Message: "Content-Type must be application/json",
			Code:    string(errs.Validation),
		})
		return http.ErrNotSupported
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid JSON body",
			Code:    string(errs.Validation),
		})
		return err
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: err.Error(),
			Code:    string(errs.Validation),
		})
		return err
	}
	return nil
}
