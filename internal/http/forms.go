package httpserver

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxPasswordBytes is bcrypt's input limit; longer passwords are rejected by
// bcrypt rather than truncated.
const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// validator's max counts runes; bcrypt counts bytes.
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

var (
	errInvalidMovieID = errors.New("invalid movie id")
	errInvalidScore   = errors.New("invalid score")
)

type credentialsForm struct {
	Email    string `validate:"required,email,max=256"`
	Password string `validate:"required,bcryptlen"`
}

func parseCredentials(values url.Values) (credentialsForm, error) {
	form := credentialsForm{
		Email:    strings.TrimSpace(values.Get("email")),
		Password: values.Get("password"),
	}
	return form, validate.Struct(form)
}

type ratingForm struct {
	MovieID int64 `validate:"gt=0"`
	Score   int   `validate:"min=0,max=5"`
}

// parseRatingForm reads movie_id and rating. The movie id is parsed first so
// a bad score can still redirect back to the movie.
func parseRatingForm(values url.Values) (ratingForm, error) {
	var form ratingForm

	id, err := strconv.ParseInt(strings.TrimSpace(values.Get("movie_id")), 10, 64)
	if err != nil {
		return form, errInvalidMovieID
	}
	form.MovieID = id
	if err := validate.StructPartial(form, "MovieID"); err != nil {
		return form, errInvalidMovieID
	}

	score, err := strconv.Atoi(strings.TrimSpace(values.Get("rating")))
	if err != nil {
		return form, errInvalidScore
	}
	form.Score = score
	if err := validate.Struct(form); err != nil {
		return form, errInvalidScore
	}
	return form, nil
}
