package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"activityinsight/internal/analytics"
	dbpkg "activityinsight/internal/db"
	httpctx "activityinsight/internal/http/ctx"
)

// ValidationError is a request the service refuses before touching the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateStruct runs the struct tags and converts the first failure.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", err.Error())
	}
	fe := verrs[0]
	return invalid(fe.Field(), validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"internal_error","message":"failed to encode response"}`)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	jsonResponse(ctx, status, errorBody{Error: code, Message: msg})
}

// writeError maps an error to its HTTP form. Store details are logged, never
// returned to the client.
func writeError(ctx *fasthttp.RequestCtx, log *zap.Logger, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		errResponse(ctx, fasthttp.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, analytics.ErrInvalidMetadata):
		errResponse(ctx, fasthttp.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, dbpkg.ErrNotFound):
		errResponse(ctx, fasthttp.StatusNotFound, "not_found", "activity not found")
	default:
		id, _ := httpctx.RequestIDFromCtx(ctx)
		log.Error("request failed",
			zap.ByteString("path", ctx.Path()),
			zap.String("request_id", id),
			zap.Error(err),
		)
		errResponse(ctx, fasthttp.StatusInternalServerError, "internal_error", "failed to process request")
	}
}

// queryInt reads an integer query argument, falling back to def when absent.
func queryInt(ctx *fasthttp.RequestCtx, name string, def int) (int, error) {
	raw := strings.TrimSpace(string(ctx.QueryArgs().Peek(name)))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(name, "must be an integer")
	}
	return n, nil
}

// pathParam returns a router path parameter as a string.
func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	s, _ := ctx.UserValue(name).(string)
	return s
}

type pageQuery struct {
	Page  int `json:"page" validate:"min=1"`
	Limit int `json:"limit" validate:"min=1,max=100"`
}

const (
	defaultPage  = 1
	defaultLimit = 20
)

func parsePageQuery(ctx *fasthttp.RequestCtx) (pageQuery, error) {
	var q pageQuery
	var err error
	if q.Page, err = queryInt(ctx, "page", defaultPage); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(ctx, "limit", defaultLimit); err != nil {
		return q, err
	}
	if err := validateStruct(q); err != nil {
		return q, err
	}
	// The row offset (page-1)*limit must fit in an int.
	if q.Page-1 > math.MaxInt/q.Limit {
		return q, invalid("page", "is out of range")
	}
	return q, nil
}
