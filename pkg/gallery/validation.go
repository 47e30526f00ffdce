package gallery

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxImageSize is the exclusive upper bound on an image payload in bytes.
const MaxImageSize = 4_000_000

// Field names and messages returned in ValidationError.Fields.
const (
	FieldTitle = "title"
	FieldImage = "image"

	MsgTitleRequired = "Title is required"
	MsgImageRequired = "Image is required"
	MsgImageType     = "Only images are allowed"
	MsgImageTooLarge = "Image must be less than 4MB"
)

const (
	imageTypeTag       = "imagetype"
	imageContentPrefix = "image/"
)

// Each rule is its own struct field so every failing check on the image is
// reported, not only the first one.
type createRules struct {
	Title        string `form:"title" validate:"required"`
	ImagePresent int64  `form:"image" validate:"gt=0"`
	ImageType    string `form:"image" validate:"imagetype"`
	ImageSize    int64  `form:"image" validate:"lt=4000000"`
}

type updateRules struct {
	Title     string `form:"title" validate:"required"`
	ImageType string `form:"image" validate:"imagetype"`
	ImageSize int64  `form:"image" validate:"lt=4000000"`
}

var messages = map[string]string{
	FieldTitle + ".required":        MsgTitleRequired,
	FieldImage + ".gt":              MsgImageRequired,
	FieldImage + "." + imageTypeTag: MsgImageType,
	FieldImage + ".lt":              MsgImageTooLarge,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("form"); name != "" {
			return name
		}
		return fld.Name
	})
	if err := v.RegisterValidation(imageTypeTag, imageTypeValidation); err != nil {
		panic(fmt.Sprintf("failed to register %s validator: %v", imageTypeTag, err))
	}
	return v
}

// imageTypeValidation accepts image/* content types. Empty files skip the check.
func imageTypeValidation(fl validator.FieldLevel) bool {
	if fl.Parent().FieldByName("ImageSize").Int() == 0 {
		return true
	}
	return strings.HasPrefix(fl.Field().String(), imageContentPrefix)
}

// ValidateCreate checks a create submission. The image is required.
func ValidateCreate(form Form) (Form, error) {
	rules := createRules{Title: form.Title}
	if form.Image != nil {
		rules.ImagePresent = form.Image.Size
		rules.ImageType = form.Image.ContentType
		rules.ImageSize = form.Image.Size
	}
	if err := check(rules); err != nil {
		return Form{}, err
	}
	return form, nil
}

// ValidateUpdate checks an update submission. An absent or empty image is
// valid and comes back as a nil Image, meaning the stored image is kept.
func ValidateUpdate(form Form) (Form, error) {
	if form.Image.IsEmpty() {
		form.Image = nil
	}
	rules := updateRules{Title: form.Title}
	if form.Image != nil {
		rules.ImageType = form.Image.ContentType
		rules.ImageSize = form.Image.Size
	}
	if err := check(rules); err != nil {
		return Form{}, err
	}
	return form, nil
}

func check(rules interface{}) error {
	err := validate.Struct(rules)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation error: %w", err)
	}

	verr := &ValidationError{}
	for _, fieldErr := range validationErrors {
		msg, ok := messages[fieldErr.Field()+"."+fieldErr.Tag()]
		if !ok {
			msg = fmt.Sprintf("Invalid %s", fieldErr.Field())
		}
		verr.Add(fieldErr.Field(), msg)
	}
	return verr
}
