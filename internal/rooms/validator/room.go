package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"roombook/pkg/logger"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type RoomValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRoomValidator(log *logger.Logger) *RoomValidator {
	v := validator.New()

	if err := v.RegisterValidation("places_map", validatePlacesMap); err != nil {
		log.Fatal("Failed to register 'places_map' validator",
			"error", err,
		)
	}

	log.Info("Room validator initialized successfully")

	return &RoomValidator{
		validate: v,
		logger:   log,
	}
}

// validatePlacesMap enforces the closed place-category set: every key must
// be a known place type and every capacity must sit in the sane range.
func validatePlacesMap(fl validator.FieldLevel) bool {
	value := fl.Field()

	if value.IsNil() {
		return false
	}

	places, ok := value.Interface().(map[model.PlaceType]int)
	if !ok {
		return false
	}

	for placeType, capacity := range places {
		if !placeType.Valid() {
			return false
		}
		if capacity < sanitizer.MinPlaces || capacity > sanitizer.MaxPlaces {
			return false
		}
	}
	return true
}

func (v *RoomValidator) Validate(room *model.Room) error {
	if err := v.validate.Struct(room); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return nil
}

func (v *RoomValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "places_map":
			message = fmt.Sprintf("%s must map known place types (%s, %s) to capacities between %d and %d",
				err.Field(), model.PlaceSitting, model.PlaceStanding, sanitizer.MinPlaces, sanitizer.MaxPlaces)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
