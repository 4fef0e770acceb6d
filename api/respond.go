package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
)

// Response 是所有 JSON 响应的外层结构
type Response struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validate = newValidator()

// newValidator 让错误信息使用 json 字段名
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, status int, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, &Response{Status: "success", Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Err(err).Str("code", code).Str("path", r.URL.Path).Msg("API error")
	}
	respondJSON(w, status, &Response{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
}

// respondDomainError 按 DomainError 的 Code 映射 HTTP 状态码
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := http.StatusText(status)
	if de := core.GetDomainError(err); de != nil && status < http.StatusInternalServerError {
		message = de.Message
	}
	respondError(w, r, status, code, message, err)
}

func statusFor(err error) (int, string) {
	switch {
	case core.IsInvalidInput(err):
		return http.StatusBadRequest, core.ErrorCodeInvalidInput
	case core.IsNotFound(err):
		return http.StatusNotFound, core.ErrorCodeNotFound
	case core.IsUnavailable(err):
		return http.StatusServiceUnavailable, core.ErrorCodeUnavailable
	case core.IsNotSupported(err):
		return http.StatusNotImplemented, core.ErrorCodeNotSupported
	default:
		return http.StatusInternalServerError, core.ErrorCodeInternalError
	}
}

// decodeBody 解码并校验请求体，失败时已写出 400
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid JSON body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, validationMessage(err), nil)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
