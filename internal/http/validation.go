package http

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidationsOnce sync.Once

// registerValidations agrega reglas propias al validator que usa gin en ShouldBindJSON.
func registerValidations() {
	registerValidationsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("maxbytes", maxBytes)
	})
}

// maxBytes limita la longitud en bytes; max cuenta runas.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

type fieldError struct {
	Param    string `json:"param"`
	Msg      string `json:"msg"`
	Location string `json:"location"`
}

// fieldErrors traduce errores de binding al formato {param, msg} usando el tag `msg` del request.
// Un tag `msg_<regla>` tiene prioridad para esa regla.
func fieldErrors(req any, err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Param: "body", Msg: "Invalid request body", Location: "body"}}
	}

	t := reflect.TypeOf(req)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		param, msg := fe.Field(), "Invalid value"
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if name := strings.Split(f.Tag.Get("json"), ",")[0]; name != "" {
				param = name
			}
			if m := f.Tag.Get("msg_" + fe.Tag()); m != "" {
				msg = m
			} else if m := f.Tag.Get("msg"); m != "" {
				msg = m
			}
		}
		out = append(out, fieldError{Param: param, Msg: msg, Location: "body"})
	}
	return out
}
